// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gemcraft/gemcms/internal/cache"
	"github.com/gemcraft/gemcms/internal/model"
	"github.com/gemcraft/gemcms/internal/store"
)

// Job names.
const (
	JobExpirePopups = "expire-popups"
	JobPurgeLeads   = "purge-leads"
	JobPruneEvents  = "prune-events"
)

// ExpirePopupsJob deactivates popups whose display window has ended and
// drops the cached popup lists when any changed.
func ExpirePopupsJob(popups *store.PopupStore, c *cache.Manager, now func() time.Time) Job {
	return Job{
		Name:        JobExpirePopups,
		Description: "Deactivate popups whose endsAt has passed",
		Schedule:    "* * * * *",
		Run: func(ctx context.Context) error {
			n, err := popups.DeactivateExpired(ctx, now())
			if err != nil {
				return err
			}
			if n > 0 {
				c.InvalidateResource(ctx, "popups")
				slog.Info("expired popups deactivated", "count", n, "category", model.EventCategoryContent)
			}
			return nil
		},
	}
}

// PurgeLeadsJob deletes closed leads not updated within retention.
func PurgeLeadsJob(leads *store.LeadStore, retention time.Duration, now func() time.Time) Job {
	return Job{
		Name:        JobPurgeLeads,
		Description: "Delete closed leads older than the retention window",
		Schedule:    "30 3 * * *",
		Run: func(ctx context.Context) error {
			n, err := leads.PurgeClosed(ctx, now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				slog.Info("closed leads purged", "count", n, "category", model.EventCategoryLead)
			}
			return nil
		},
	}
}

// PruneEventsJob deletes event log records older than retention.
func PruneEventsJob(events *store.EventStore, retention time.Duration, now func() time.Time) Job {
	return Job{
		Name:        JobPruneEvents,
		Description: "Delete event log records older than the retention window",
		Schedule:    "0 4 * * *",
		Run: func(ctx context.Context) error {
			n, err := events.DeleteBefore(ctx, now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				slog.Info("old events pruned", "count", n, "category", model.EventCategorySystem)
			}
			return nil
		},
	}
}
