package store_test

import (
	"testing"

	"github.com/rhymeswithjazz/pull-list/internal/models"
	"github.com/rhymeswithjazz/pull-list/internal/store"
	"github.com/rhymeswithjazz/pull-list/internal/testutil"
)

func TestRunStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	t.Run("Create And Finalize Run", func(t *testing.T) {
		id, err := s.CreateRun(models.RunTypeManual)
		if err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}

		runs, err := s.GetRecentRuns(10)
		if err != nil {
			t.Fatalf("GetRecentRuns failed: %v", err)
		}
		if len(runs) != 1 || runs[0].Status != models.RunStatusRunning {
			t.Fatalf("Expected one running run, got %+v", runs)
		}

		rlID, rlName := "rl-1", "Pull List 2024-W48"
		if err := s.FinalizeRun(id, models.RunStatusSuccess, 5, &rlID, &rlName, nil); err != nil {
			t.Fatalf("FinalizeRun failed: %v", err)
		}

		runs, _ = s.GetRecentRuns(10)
		r := runs[0]
		if r.Status != models.RunStatusSuccess || r.BooksFound != 5 || !r.ReadlistCreated {
			t.Errorf("Unexpected finalized run: %+v", r)
		}
		if r.CompletedAt == nil {
			t.Error("Expected completed_at to be set")
		}
	})

	t.Run("Finalize Failed Run", func(t *testing.T) {
		id, _ := s.CreateRun(models.RunTypeScheduled)
		msg := "library unreachable"
		if err := s.FinalizeRun(id, models.RunStatusFailed, 0, nil, nil, &msg); err != nil {
			t.Fatalf("FinalizeRun failed: %v", err)
		}
		runs, _ := s.GetRecentRuns(1)
		if runs[0].ErrorMessage == nil || *runs[0].ErrorMessage != msg {
			t.Errorf("Expected error message %q, got %+v", msg, runs[0].ErrorMessage)
		}
		if runs[0].ReadlistCreated {
			t.Error("Failed run should not report a readlist")
		}
	})

	t.Run("Readlist Run For Week", func(t *testing.T) {
		r, err := s.GetReadlistRunForWeek("2024-W48")
		if err != nil {
			t.Fatalf("GetReadlistRunForWeek failed: %v", err)
		}
		if r == nil || r.ReadlistID == nil || *r.ReadlistID != "rl-1" {
			t.Fatalf("Expected run with readlist rl-1, got %+v", r)
		}

		r, err = s.GetReadlistRunForWeek("2024-W49")
		if err != nil {
			t.Fatalf("GetReadlistRunForWeek failed: %v", err)
		}
		if r != nil {
			t.Errorf("Expected no run for 2024-W49, got %+v", r)
		}
	})

	t.Run("Recent Runs Limit", func(t *testing.T) {
		runs, err := s.GetRecentRuns(1)
		if err != nil {
			t.Fatalf("GetRecentRuns failed: %v", err)
		}
		if len(runs) != 1 {
			t.Errorf("Expected 1 run with limit 1, got %d", len(runs))
		}
	})

	t.Run("Notification Log", func(t *testing.T) {
		sent, err := s.NotificationSentForWeek("2024-W48")
		if err != nil {
			t.Fatalf("NotificationSentForWeek failed: %v", err)
		}
		if sent {
			t.Error("Expected no notification yet")
		}

		if err := s.RecordNotificationSent("2024-W48", 5); err != nil {
			t.Fatalf("RecordNotificationSent failed: %v", err)
		}
		sent, _ = s.NotificationSentForWeek("2024-W48")
		if !sent {
			t.Error("Expected notification to be recorded")
		}

		// A second record for the same week violates the unique constraint.
		if err := s.RecordNotificationSent("2024-W48", 5); err == nil {
			t.Error("Expected error on duplicate notification record")
		}
	})
}
