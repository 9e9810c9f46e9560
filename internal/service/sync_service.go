package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/veloplan/sync-service/internal/config"
	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/internal/repository"
	"github.com/veloplan/sync-service/internal/strava"
	"go.uber.org/zap"
)

// SyncService orchestrates the batch routines: full activity sync runs,
// manual per-user syncs, ledger cleanup and notification delivery.
// Every run is recorded in the job run ledger before any work starts
// and finalized exactly once.
type SyncService struct {
	users      repository.UserRepository
	activities repository.ActivityRepository
	workouts   repository.WorkoutRepository
	jobs       repository.JobRepository
	tokens     *TokenManager
	api        StravaAPI
	matcher    *Matcher
	notifier   Notifier
	metrics    *SyncMetrics
	cfg        config.SyncConfig
	logger     *zap.Logger
}

// NewSyncService creates the sync orchestrator
func NewSyncService(
	repos *repository.Repositories,
	tokens *TokenManager,
	api StravaAPI,
	matcher *Matcher,
	notifier Notifier,
	metrics *SyncMetrics,
	cfg config.SyncConfig,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		users:      repos.User,
		activities: repos.Activity,
		workouts:   repos.Workout,
		jobs:       repos.Job,
		tokens:     tokens,
		api:        api,
		matcher:    matcher,
		notifier:   notifier,
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// userOutcome is the settled result of one per-user sync task.
type userOutcome struct {
	synced int
	err    error
}

// RunActivitySync executes one full sync pass over all eligible users.
// Users are processed in fixed-size batches; within a batch every task
// runs concurrently and the batch settles only when all tasks have
// returned. Individual user failures never abort the run; the run
// itself fails only when eligible users cannot be enumerated or the
// context is canceled between batches.
func (s *SyncService) RunActivitySync(ctx context.Context) (*domain.JobRun, error) {
	run := &domain.JobRun{JobType: domain.JobTypeActivitySync}
	if err := s.jobs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start activity sync run: %w", err)
	}

	users, err := s.users.FindEligibleForSync(ctx)
	if err != nil {
		s.finalize(ctx, run.ID, domain.JobTypeActivitySync, domain.JobStatusFailed, err.Error())
		return nil, fmt.Errorf("failed to enumerate eligible users: %w", err)
	}

	if err := s.jobs.SetTotalUsers(ctx, run.ID, len(users)); err != nil {
		s.logger.Warn("failed to record total users", zap.String("run_id", run.ID), zap.Error(err))
	}

	s.logger.Info("activity sync run started",
		zap.String("run_id", run.ID),
		zap.Int("total_users", len(users)),
		zap.Int("batch_size", s.cfg.BatchSize),
	)

	var processed, successful, failed int

	for start := 0; start < len(users); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(users))
		batch := users[start:end]

		outcomes := make([]userOutcome, len(batch))
		var wg sync.WaitGroup
		for i, user := range batch {
			wg.Add(1)
			go func(i int, user *domain.User) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						outcomes[i] = userOutcome{err: fmt.Errorf("panic during user sync: %v", r)}
						s.logger.Error("user sync panicked",
							zap.String("run_id", run.ID),
							zap.String("user_id", user.ID),
							zap.Any("panic", r),
						)
					}
				}()

				synced, err := s.syncUser(ctx, run.ID, user)
				outcomes[i] = userOutcome{synced: synced, err: err}
			}(i, user)
		}
		wg.Wait()

		for _, outcome := range outcomes {
			processed++
			if outcome.err != nil {
				failed++
			} else {
				successful++
			}
		}

		// Checkpoint aggregate counters once per settled batch. Only
		// this goroutine writes them, so no coordination is needed.
		if err := s.jobs.UpdateProgress(ctx, run.ID, processed, successful, failed); err != nil {
			s.logger.Warn("failed to checkpoint run progress", zap.String("run_id", run.ID), zap.Error(err))
		}

		if end < len(users) {
			select {
			case <-ctx.Done():
				s.finalize(ctx, run.ID, domain.JobTypeActivitySync, domain.JobStatusFailed, "run canceled between batches")
				return nil, ctx.Err()
			case <-time.After(s.cfg.BatchDelay.Duration):
			}
		}
	}

	s.finalize(ctx, run.ID, domain.JobTypeActivitySync, domain.JobStatusCompleted, "")

	s.logger.Info("activity sync run completed",
		zap.String("run_id", run.ID),
		zap.Int("processed", processed),
		zap.Int("successful", successful),
		zap.Int("failed", failed),
	)

	return s.jobs.GetRun(ctx, run.ID)
}

// syncUser runs one user's sync and records the attempt in the per-user
// log regardless of outcome.
func (s *SyncService) syncUser(ctx context.Context, runID string, user *domain.User) (int, error) {
	start := time.Now()
	synced, err := s.doSync(ctx, user)
	elapsed := int(time.Since(start).Seconds())

	entry := &domain.JobRunLog{
		JobRunID:            &runID,
		UserID:              user.ID,
		Status:              domain.LogStatusSuccess,
		ActivitiesSynced:    synced,
		SyncDurationSeconds: elapsed,
	}
	if err != nil {
		msg := err.Error()
		entry.Status = domain.LogStatusFailed
		entry.ErrorMessage = &msg
	}

	if logErr := s.jobs.CreateLog(ctx, entry); logErr != nil {
		s.logger.Error("failed to record sync attempt",
			zap.String("run_id", runID),
			zap.String("user_id", user.ID),
			zap.Error(logErr),
		)
	}

	s.metrics.RecordUserSync(ctx, entry.Status, synced)

	if err != nil {
		s.logger.Warn("user sync failed",
			zap.String("run_id", runID),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return synced, err
	}

	s.logger.Debug("user sync finished",
		zap.String("run_id", runID),
		zap.String("user_id", user.ID),
		zap.Int("activities_synced", synced),
	)

	return synced, nil
}

// doSync pulls one user's new activities and persists them. Returns the
// number of activities created; on mid-stream failure the count covers
// what was persisted before the error.
func (s *SyncService) doSync(ctx context.Context, user *domain.User) (int, error) {
	user, err := s.tokens.EnsureValidToken(ctx, user)
	if err != nil {
		return 0, err
	}

	since := time.Now().Add(-s.cfg.Lookback.Duration)
	if user.LastSyncAt != nil {
		since = *user.LastSyncAt
	}

	remote, err := s.api.ListActivitiesSince(ctx, *user.AccessToken, since, s.cfg.PageSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list activities: %w", err)
	}

	synced := 0
	for i := range remote {
		created, err := s.importActivity(ctx, user.ID, &remote[i])
		if err != nil {
			return synced, err
		}
		if created {
			synced++
		}
	}

	if err := s.users.UpdateLastSync(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last sync timestamp",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	return synced, nil
}

// importActivity persists one remote activity unless it already exists,
// matching it against planned workouts from the same calendar day.
func (s *SyncService) importActivity(ctx context.Context, userID string, remote *strava.Activity) (bool, error) {
	existing, err := s.activities.GetByStravaID(ctx, userID, remote.ID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("failed to check activity %d: %w", remote.ID, err)
	}
	if existing != nil {
		return false, nil
	}

	activity := mapActivity(userID, remote)

	dayStart := time.Date(
		remote.StartDate.Year(), remote.StartDate.Month(), remote.StartDate.Day(),
		0, 0, 0, 0, remote.StartDate.Location(),
	)
	candidates, err := s.workouts.FindByUserAndDateRange(ctx, userID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return false, fmt.Errorf("failed to load workout candidates: %w", err)
	}

	if workoutID, ok := s.matcher.Match(candidates, activity); ok {
		activity.WorkoutID = &workoutID
		activity.SyncStatus = domain.SyncStatusMatched
	}

	if err := s.activities.Create(ctx, activity); err != nil {
		// A concurrent or repeated sync already stored this one.
		if errors.Is(err, repository.ErrDuplicateActivity) {
			return false, nil
		}
		return false, fmt.Errorf("failed to persist activity %d: %w", remote.ID, err)
	}

	return true, nil
}

func mapActivity(userID string, remote *strava.Activity) *domain.Activity {
	activity := &domain.Activity{
		UserID:             userID,
		StravaID:           remote.ID,
		Name:               remote.Name,
		Type:               remote.Type,
		SportType:          remote.SportType,
		StartDate:          remote.StartDate,
		Distance:           remote.Distance,
		MovingTimeSeconds:  remote.MovingTime,
		ElapsedTimeSeconds: remote.ElapsedTime,
		TotalElevationGain: remote.TotalElevationGain,
		AverageSpeed:       remote.AverageSpeed,
		MaxSpeed:           remote.MaxSpeed,
		AverageCadence:     remote.AverageCadence,
		AverageWatts:       remote.AverageWatts,
		Kilojoules:         remote.Kilojoules,
		AverageHeartrate:   remote.AverageHeartrate,
		MaxHeartrate:       remote.MaxHeartrate,
		TSS:                remote.SufferScore,
		SyncStatus:         domain.SyncStatusUnmatched,
	}

	if remote.Map != nil && remote.Map.SummaryPolyline != "" {
		polyline := remote.Map.SummaryPolyline
		activity.MapPolyline = &polyline
	}

	return activity
}

// SyncUser runs an immediate sync for one user, outside any batch run.
// The attempt is still recorded in the per-user log, without a parent
// run reference.
func (s *SyncService) SyncUser(ctx context.Context, userID string) (*domain.SyncResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	synced, err := s.doSync(ctx, user)
	elapsed := int(time.Since(start).Seconds())

	entry := &domain.JobRunLog{
		UserID:              user.ID,
		Status:              domain.LogStatusSuccess,
		ActivitiesSynced:    synced,
		SyncDurationSeconds: elapsed,
	}
	if err != nil {
		msg := err.Error()
		entry.Status = domain.LogStatusFailed
		entry.ErrorMessage = &msg
	}
	if logErr := s.jobs.CreateLog(ctx, entry); logErr != nil {
		s.logger.Error("failed to record manual sync attempt",
			zap.String("user_id", userID),
			zap.Error(logErr),
		)
	}

	s.metrics.RecordUserSync(ctx, entry.Status, synced)

	if err != nil {
		return nil, err
	}

	return &domain.SyncResult{
		UserID:           userID,
		ActivitiesSynced: synced,
		DurationSeconds:  elapsed,
	}, nil
}

// RunCleanup purges ledger rows past their retention windows and
// refreshes the per-user aggregate statistics.
func (s *SyncService) RunCleanup(ctx context.Context) (*domain.JobRun, error) {
	run := &domain.JobRun{JobType: domain.JobTypeCleanup}
	if err := s.jobs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start cleanup run: %w", err)
	}

	now := time.Now()

	logsDeleted, err := s.jobs.DeleteLogsBefore(ctx, now.Add(-s.cfg.LogRetention.Duration))
	if err != nil {
		s.finalize(ctx, run.ID, domain.JobTypeCleanup, domain.JobStatusFailed, err.Error())
		return nil, err
	}

	runsDeleted, err := s.jobs.DeleteTerminalRunsBefore(ctx, now.Add(-s.cfg.RunRetention.Duration))
	if err != nil {
		s.finalize(ctx, run.ID, domain.JobTypeCleanup, domain.JobStatusFailed, err.Error())
		return nil, err
	}

	if err := s.users.RecomputeStatistics(ctx); err != nil {
		s.finalize(ctx, run.ID, domain.JobTypeCleanup, domain.JobStatusFailed, err.Error())
		return nil, err
	}

	s.finalize(ctx, run.ID, domain.JobTypeCleanup, domain.JobStatusCompleted, "")

	s.logger.Info("cleanup run completed",
		zap.String("run_id", run.ID),
		zap.Int64("logs_deleted", logsDeleted),
		zap.Int64("runs_deleted", runsDeleted),
	)

	return s.jobs.GetRun(ctx, run.ID)
}

// RunNotifications notifies users who received matched activities
// inside the notification window. Delivery is best effort: a failed
// send is counted and logged but never fails the run.
func (s *SyncService) RunNotifications(ctx context.Context) (*domain.JobRun, error) {
	run := &domain.JobRun{JobType: domain.JobTypeNotifications}
	if err := s.jobs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start notifications run: %w", err)
	}

	recipients, err := s.users.FindWithNewMatches(ctx, time.Now().Add(-s.cfg.NotifyWindow.Duration))
	if err != nil {
		s.finalize(ctx, run.ID, domain.JobTypeNotifications, domain.JobStatusFailed, err.Error())
		return nil, fmt.Errorf("failed to enumerate notification recipients: %w", err)
	}

	if err := s.jobs.SetTotalUsers(ctx, run.ID, len(recipients)); err != nil {
		s.logger.Warn("failed to record total users", zap.String("run_id", run.ID), zap.Error(err))
	}

	var sent, failed int
	for _, recipient := range recipients {
		if err := s.notifier.Send(ctx, recipient.User, recipient.NewActivities); err != nil {
			failed++
			s.logger.Warn("notification delivery failed",
				zap.String("run_id", run.ID),
				zap.String("user_id", recipient.User.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}

	if err := s.jobs.UpdateProgress(ctx, run.ID, sent+failed, sent, failed); err != nil {
		s.logger.Warn("failed to checkpoint run progress", zap.String("run_id", run.ID), zap.Error(err))
	}

	s.finalize(ctx, run.ID, domain.JobTypeNotifications, domain.JobStatusCompleted, "")

	s.logger.Info("notifications run completed",
		zap.String("run_id", run.ID),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)

	return s.jobs.GetRun(ctx, run.ID)
}

// finalize moves the run to its terminal status even when the caller's
// context is already canceled.
func (s *SyncService) finalize(ctx context.Context, runID, jobType, status, errorMessage string) {
	var msg *string
	if errorMessage != "" {
		msg = &errorMessage
	}

	if err := s.jobs.FinalizeRun(context.WithoutCancel(ctx), runID, status, msg); err != nil {
		s.logger.Error("failed to finalize job run",
			zap.String("run_id", runID),
			zap.String("status", status),
			zap.Error(err),
		)
	}

	s.metrics.RecordJobRun(ctx, jobType, status)
}
