// Package notify sends the weekly "pull list ready" email. Notification is a
// post-run step: it consumes a finished run's result and can never affect the
// run's own outcome.
package notify

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/rhymeswithjazz/pull-list/internal/models"
	"github.com/rhymeswithjazz/pull-list/internal/store"
	"github.com/rhymeswithjazz/pull-list/internal/week"
)

// Notifier guards at-most-one notification per week, regardless of how many
// runs complete within it.
type Notifier struct {
	store    *store.Store
	provider Provider
}

// New creates a Notifier. provider may be nil when notifications are
// disabled, in which case NotifyRunComplete is a no-op.
func New(st *store.Store, provider Provider) *Notifier {
	return &Notifier{store: st, provider: provider}
}

// NotifyRunComplete sends the pull-ready email for a successful run with at
// least one item. Errors are logged and swallowed; a failed send does not
// mark the week as notified, so the next run retries.
func (n *Notifier) NotifyRunComplete(ctx context.Context, result *models.PullListResult) {
	if n.provider == nil || result == nil || !result.Success || len(result.Items) == 0 {
		return
	}

	sent, err := n.store.NotificationSentForWeek(result.WeekID)
	if err != nil {
		log.Printf("Error checking notification log for %s: %v", result.WeekID, err)
		return
	}
	if sent {
		return
	}

	subject := fmt.Sprintf("Pull list ready: %s", weekLabel(result.WeekID))
	if err := n.provider.Send(ctx, subject, buildBody(result)); err != nil {
		log.Printf("Error sending notification for %s: %v", result.WeekID, err)
		return
	}

	if err := n.store.RecordNotificationSent(result.WeekID, len(result.Items)); err != nil {
		log.Printf("Error recording notification for %s: %v", result.WeekID, err)
	}
}

func weekLabel(weekID string) string {
	display, err := week.FormatDisplay(weekID)
	if err != nil {
		return weekID
	}
	return display
}

func buildBody(result *models.PullListResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<h2>%s</h2>", html.EscapeString(weekLabel(result.WeekID)))
	fmt.Fprintf(&sb, "<p>%d book(s) on your pull list this week.</p><ul>", len(result.Items))
	for _, item := range result.Items {
		label := fmt.Sprintf("%s #%s", item.SeriesName, item.BookNumber)
		if !item.Downloaded {
			label += " (upcoming)"
		}
		fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(label))
	}
	sb.WriteString("</ul>")
	if result.ReadlistName != nil {
		fmt.Fprintf(&sb, "<p>Readlist: %s</p>", html.EscapeString(*result.ReadlistName))
	}
	return sb.String()
}
