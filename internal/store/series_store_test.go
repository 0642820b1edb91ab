package store_test

import (
	"testing"

	"github.com/rhymeswithjazz/pull-list/internal/store"
	"github.com/rhymeswithjazz/pull-list/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestSeriesStore(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	t.Run("Add Tracked Series", func(t *testing.T) {
		ts, err := s.AddTrackedSeries("Saga", strPtr("Image"), "komga-series-1", strPtr("101319"))
		if err != nil {
			t.Fatalf("AddTrackedSeries failed: %v", err)
		}
		if ts.ID == 0 {
			t.Error("Expected series to get an id")
		}
		if !ts.Active {
			t.Error("Expected new series to be active")
		}
	})

	t.Run("Add Duplicate Komga Series", func(t *testing.T) {
		_, err := s.AddTrackedSeries("Saga Again", nil, "komga-series-1", nil)
		if err == nil {
			t.Fatal("Expected error when tracking the same library series twice, got nil")
		}
	})

	t.Run("Get Tracked Series Ordered By Name", func(t *testing.T) {
		if _, err := s.AddTrackedSeries("Batman", strPtr("DC"), "komga-series-2", nil); err != nil {
			t.Fatalf("AddTrackedSeries failed: %v", err)
		}
		series, err := s.GetTrackedSeries(false)
		if err != nil {
			t.Fatalf("GetTrackedSeries failed: %v", err)
		}
		if len(series) != 2 {
			t.Fatalf("Expected 2 series, got %d", len(series))
		}
		if series[0].Name != "Batman" || series[1].Name != "Saga" {
			t.Errorf("Expected alphabetical order, got %q then %q", series[0].Name, series[1].Name)
		}
	})

	t.Run("Get By Komga ID", func(t *testing.T) {
		ts, err := s.GetTrackedSeriesByKomgaID("komga-series-1")
		if err != nil {
			t.Fatalf("GetTrackedSeriesByKomgaID failed: %v", err)
		}
		if ts == nil || ts.Name != "Saga" {
			t.Fatalf("Expected Saga, got %+v", ts)
		}

		missing, err := s.GetTrackedSeriesByKomgaID("no-such-series")
		if err != nil {
			t.Fatalf("Lookup of missing series failed: %v", err)
		}
		if missing != nil {
			t.Errorf("Expected nil for untracked series, got %+v", missing)
		}
	})

	t.Run("Toggle Active", func(t *testing.T) {
		ts, _ := s.GetTrackedSeriesByKomgaID("komga-series-2")
		active, err := s.ToggleTrackedSeries(ts.ID)
		if err != nil {
			t.Fatalf("ToggleTrackedSeries failed: %v", err)
		}
		if active {
			t.Error("Expected series to be inactive after toggle")
		}

		activeOnly, err := s.GetTrackedSeries(true)
		if err != nil {
			t.Fatalf("GetTrackedSeries(activeOnly) failed: %v", err)
		}
		if len(activeOnly) != 1 || activeOnly[0].Name != "Saga" {
			t.Errorf("Expected only Saga to be active, got %d series", len(activeOnly))
		}

		active, err = s.ToggleTrackedSeries(ts.ID)
		if err != nil || !active {
			t.Errorf("Expected series reactivated, got active=%v err=%v", active, err)
		}
	})

	t.Run("Remove Tracked Series", func(t *testing.T) {
		ts, _ := s.GetTrackedSeriesByKomgaID("komga-series-2")
		if err := s.RemoveTrackedSeries(ts.ID); err != nil {
			t.Fatalf("RemoveTrackedSeries failed: %v", err)
		}
		remaining, _ := s.GetTrackedSeries(false)
		if len(remaining) != 1 {
			t.Errorf("Expected 1 series after removal, got %d", len(remaining))
		}
	})
}
