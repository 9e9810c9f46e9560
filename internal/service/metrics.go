package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetrics exposes the sync engine's counters through the global
// OpenTelemetry meter provider. All methods are nil-safe so tests can
// pass a nil receiver.
type SyncMetrics struct {
	jobRuns          metric.Int64Counter
	userSyncs        metric.Int64Counter
	activitiesSynced metric.Int64Counter
}

// NewSyncMetrics registers the sync counters
func NewSyncMetrics() (*SyncMetrics, error) {
	meter := otel.Meter("sync-service")

	jobRuns, err := meter.Int64Counter("sync_job_runs_total",
		metric.WithDescription("Job runs by type and terminal status"))
	if err != nil {
		return nil, fmt.Errorf("failed to create job runs counter: %w", err)
	}

	userSyncs, err := meter.Int64Counter("sync_user_attempts_total",
		metric.WithDescription("Per-user sync attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create user syncs counter: %w", err)
	}

	activitiesSynced, err := meter.Int64Counter("sync_activities_persisted_total",
		metric.WithDescription("Activities persisted by the sync engine"))
	if err != nil {
		return nil, fmt.Errorf("failed to create activities counter: %w", err)
	}

	return &SyncMetrics{
		jobRuns:          jobRuns,
		userSyncs:        userSyncs,
		activitiesSynced: activitiesSynced,
	}, nil
}

func (m *SyncMetrics) RecordJobRun(ctx context.Context, jobType, status string) {
	if m == nil {
		return
	}
	m.jobRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_type", jobType),
		attribute.String("status", status),
	))
}

func (m *SyncMetrics) RecordUserSync(ctx context.Context, status string, activities int) {
	if m == nil {
		return
	}
	m.userSyncs.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if activities > 0 {
		m.activitiesSynced.Add(ctx, int64(activities))
	}
}
