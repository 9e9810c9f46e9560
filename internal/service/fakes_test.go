package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/internal/repository"
	"github.com/veloplan/sync-service/internal/strava"
)

type fakeUserRepo struct {
	mu          sync.Mutex
	users       map[string]*domain.User
	eligibleErr error
	newMatches  []domain.UserNewActivities
	matchesErr  error
	recomputed  int
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found: %w", id, repository.ErrNotFound)
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) FindEligibleForSync(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.eligibleErr != nil {
		return nil, r.eligibleErr
	}
	var eligible []*domain.User
	for _, user := range r.users {
		if user.Status == "active" && user.AutoSyncEnabled && user.HasCredential() {
			copied := *user
			eligible = append(eligible, &copied)
		}
	}
	return eligible, nil
}

func (r *fakeUserRepo) UpdateCredential(_ context.Context, userID string, cred domain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	user.AccessToken = &cred.AccessToken
	user.RefreshToken = &cred.RefreshToken
	user.TokenExpiresAt = &cred.ExpiresAt
	return nil
}

func (r *fakeUserRepo) UpdateLastSync(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	user.LastSyncAt = &now
	return nil
}

func (r *fakeUserRepo) UpdateAutoSync(_ context.Context, userID string, enabled bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user.AutoSyncEnabled = enabled
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetSyncStatus(_ context.Context, userID string) (*domain.UserSyncStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &domain.UserSyncStatus{User: &copied}, nil
}

func (r *fakeUserRepo) FindWithNewMatches(_ context.Context, _ time.Time) ([]domain.UserNewActivities, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.matchesErr != nil {
		return nil, r.matchesErr
	}
	return r.newMatches, nil
}

func (r *fakeUserRepo) RecomputeStatistics(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recomputed++
	return nil
}

type fakeActivityRepo struct {
	mu        sync.Mutex
	stored    map[string]*domain.Activity
	createErr error
}

func newFakeActivityRepo() *fakeActivityRepo {
	return &fakeActivityRepo{stored: make(map[string]*domain.Activity)}
}

func activityKey(userID string, stravaID int64) string {
	return fmt.Sprintf("%s/%d", userID, stravaID)
}

func (r *fakeActivityRepo) GetByStravaID(_ context.Context, userID string, stravaID int64) (*domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	activity, ok := r.stored[activityKey(userID, stravaID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *activity
	return &copied, nil
}

func (r *fakeActivityRepo) Create(_ context.Context, activity *domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	key := activityKey(activity.UserID, activity.StravaID)
	if _, exists := r.stored[key]; exists {
		return repository.ErrDuplicateActivity
	}
	if activity.ID == "" {
		activity.ID = uuid.New().String()
	}
	copied := *activity
	r.stored[key] = &copied
	return nil
}

func (r *fakeActivityRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stored)
}

type fakeWorkoutRepo struct {
	mu       sync.Mutex
	workouts []domain.Workout
}

func (r *fakeWorkoutRepo) FindByUserAndDateRange(_ context.Context, userID string, start, end time.Time) ([]domain.Workout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.Workout
	for _, workout := range r.workouts {
		if workout.UserID != userID {
			continue
		}
		if workout.CreatedAt.Before(start) || !workout.CreatedAt.Before(end) {
			continue
		}
		matched = append(matched, workout)
	}
	return matched, nil
}

type progressSnapshot struct {
	processed  int
	successful int
	failed     int
}

type fakeJobRepo struct {
	mu        sync.Mutex
	runs      map[string]*domain.JobRun
	logs      []*domain.JobRunLog
	snapshots []progressSnapshot
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{runs: make(map[string]*domain.JobRun)}
}

func (r *fakeJobRepo) CreateRun(_ context.Context, run *domain.JobRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = domain.JobStatusRunning
	}
	now := time.Now()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

func (r *fakeJobRepo) GetRun(_ context.Context, id string) (*domain.JobRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *run
	return &copied, nil
}

func (r *fakeJobRepo) ListRuns(_ context.Context, limit int) ([]*domain.JobRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var runs []*domain.JobRun
	for _, run := range r.runs {
		copied := *run
		runs = append(runs, &copied)
		if len(runs) == limit {
			break
		}
	}
	return runs, nil
}

func (r *fakeJobRepo) SetTotalUsers(_ context.Context, id string, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		run.TotalUsers = total
	}
	return nil
}

func (r *fakeJobRepo) UpdateProgress(_ context.Context, id string, processed, successful, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run, ok := r.runs[id]; ok {
		run.ProcessedUsers = processed
		run.SuccessfulSyncs = successful
		run.FailedSyncs = failed
	}
	r.snapshots = append(r.snapshots, progressSnapshot{processed, successful, failed})
	return nil
}

func (r *fakeJobRepo) FinalizeRun(_ context.Context, id, status string, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok || run.Status != domain.JobStatusRunning {
		return nil
	}
	now := time.Now()
	run.Status = status
	run.CompletedAt = &now
	run.ErrorMessage = errorMessage
	return nil
}

func (r *fakeJobRepo) CreateLog(_ context.Context, log *domain.JobRunLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	copied := *log
	r.logs = append(r.logs, &copied)
	return nil
}

func (r *fakeJobRepo) ListLogsByRun(_ context.Context, runID string) ([]*domain.JobRunLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var logs []*domain.JobRunLog
	for _, log := range r.logs {
		if log.JobRunID != nil && *log.JobRunID == runID {
			copied := *log
			logs = append(logs, &copied)
		}
	}
	return logs, nil
}

func (r *fakeJobRepo) DeleteLogsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*domain.JobRunLog
	var deleted int64
	for _, log := range r.logs {
		if log.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, log)
	}
	r.logs = kept
	return deleted, nil
}

func (r *fakeJobRepo) DeleteTerminalRunsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, run := range r.runs {
		if run.CreatedAt.Before(cutoff) && run.Terminal() {
			delete(r.runs, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeStravaAPI struct {
	mu           sync.Mutex
	activities   map[string][]strava.Activity
	listErr      map[string]error
	refreshed    *strava.Credentials
	refreshErr   error
	refreshCalls int
	grant        *strava.TokenGrant
	exchangeErr  error
	streams      strava.StreamSet
}

func newFakeStravaAPI() *fakeStravaAPI {
	return &fakeStravaAPI{
		activities: make(map[string][]strava.Activity),
		listErr:    make(map[string]error),
	}
}

func (a *fakeStravaAPI) AuthorizationURL(state string) string {
	return "https://example.com/oauth/authorize?state=" + state
}

func (a *fakeStravaAPI) ExchangeCode(_ context.Context, _ string) (*strava.TokenGrant, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.exchangeErr != nil {
		return nil, a.exchangeErr
	}
	if a.grant == nil {
		return nil, fmt.Errorf("no grant configured")
	}
	copied := *a.grant
	return &copied, nil
}

func (a *fakeStravaAPI) RefreshToken(_ context.Context, _ string) (*strava.Credentials, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshCalls++
	if a.refreshErr != nil {
		return nil, a.refreshErr
	}
	copied := *a.refreshed
	return &copied, nil
}

func (a *fakeStravaAPI) ListActivitiesSince(_ context.Context, accessToken string, _ time.Time, _ int) ([]strava.Activity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.listErr[accessToken]; err != nil {
		return nil, err
	}
	return a.activities[accessToken], nil
}

func (a *fakeStravaAPI) GetActivityStreams(_ context.Context, _ string, _ int64, _ []string) (strava.StreamSet, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.streams != nil {
		return a.streams, nil
	}
	return strava.StreamSet{}, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sends []string
	errOn map[string]error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{errOn: make(map[string]error)}
}

func (n *fakeNotifier) Send(_ context.Context, user *domain.User, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.errOn[user.ID]; err != nil {
		return err
	}
	n.sends = append(n.sends, user.ID)
	return nil
}

type fakeGuard struct {
	mu       sync.Mutex
	held     map[string]bool
	acquires int
	releases int
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{held: make(map[string]bool)}
}

func (g *fakeGuard) Acquire(_ context.Context, jobName string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[jobName] {
		return false, nil
	}
	g.held[jobName] = true
	g.acquires++
	return true, nil
}

func (g *fakeGuard) Release(_ context.Context, jobName string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, jobName)
	g.releases++
	return nil
}
