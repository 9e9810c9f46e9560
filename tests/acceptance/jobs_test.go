package acceptance

import (
	"net/http"

	"github.com/veloplan/sync-service/internal/domain"
	"github.com/veloplan/sync-service/internal/service"
)

func (s *Suite) TestListJobsRequiresAuth() {
	resp := s.doRequest(http.MethodGet, "/api/v1/admin/jobs", "", nil)
	defer resp.Body.Close()

	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestListJobs() {
	resp := s.doRequest(http.MethodGet, "/api/v1/admin/jobs", s.adminToken(), nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var jobs []service.JobStatus
	s.decodeJSON(resp, &jobs)

	s.Len(jobs, 3)

	names := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		names[job.Name] = true
		s.False(job.Armed, "scheduler must not be armed in tests")
		s.Len(job.NextRuns, 3)
	}
	s.True(names[domain.JobTypeActivitySync])
	s.True(names[domain.JobTypeCleanup])
	s.True(names[domain.JobTypeNotifications])
}

func (s *Suite) TestTriggerUnknownJob() {
	resp := s.doRequest(http.MethodPost, "/api/v1/admin/jobs/no-such-job/run", s.adminToken(), nil)
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *Suite) TestTriggerCleanupRun() {
	resp := s.doRequest(http.MethodPost, "/api/v1/admin/jobs/cleanup/run", s.adminToken(), nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var run domain.JobRun
	s.decodeJSON(resp, &run)

	s.Equal(domain.JobTypeCleanup, run.JobType)
	s.Equal(domain.JobStatusCompleted, run.Status)
	s.NotNil(run.CompletedAt)
}

func (s *Suite) TestTriggerActivitySyncWithoutUsers() {
	resp := s.doRequest(http.MethodPost, "/api/v1/admin/jobs/activity_sync/run", s.adminToken(), nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var run domain.JobRun
	s.decodeJSON(resp, &run)

	s.Equal(domain.JobStatusCompleted, run.Status)
	s.Equal(0, run.TotalUsers)
	s.Equal(0, run.ProcessedUsers)
}

func (s *Suite) TestRunLedger() {
	// Produce one run, then read it back through the ledger endpoints.
	trigger := s.doRequest(http.MethodPost, "/api/v1/admin/jobs/cleanup/run", s.adminToken(), nil)
	s.Equal(http.StatusOK, trigger.StatusCode)

	var created domain.JobRun
	s.decodeJSON(trigger, &created)

	list := s.doRequest(http.MethodGet, "/api/v1/admin/jobs/runs", s.adminToken(), nil)
	s.Equal(http.StatusOK, list.StatusCode)

	var runs []domain.JobRun
	s.decodeJSON(list, &runs)
	s.Require().NotEmpty(runs)

	details := s.doRequest(http.MethodGet, "/api/v1/admin/jobs/runs/"+created.ID, s.adminToken(), nil)
	s.Equal(http.StatusOK, details.StatusCode)

	var payload struct {
		Run  domain.JobRun      `json:"run"`
		Logs []domain.JobRunLog `json:"logs"`
	}
	s.decodeJSON(details, &payload)
	s.Equal(created.ID, payload.Run.ID)
	s.Empty(payload.Logs)
}

func (s *Suite) TestRunDetailsNotFound() {
	resp := s.doRequest(http.MethodGet, "/api/v1/admin/jobs/runs/00000000-0000-0000-0000-000000000000", s.adminToken(), nil)
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *Suite) TestSchedulerArmAll() {
	start := s.doRequest(http.MethodPost, "/api/v1/admin/scheduler/start", s.adminToken(), nil)
	start.Body.Close()
	s.Equal(http.StatusOK, start.StatusCode)

	list := s.doRequest(http.MethodGet, "/api/v1/admin/jobs", s.adminToken(), nil)
	s.Equal(http.StatusOK, list.StatusCode)

	var jobs []service.JobStatus
	s.decodeJSON(list, &jobs)
	for _, job := range jobs {
		s.True(job.Armed)
	}

	stop := s.doRequest(http.MethodPost, "/api/v1/admin/scheduler/stop", s.adminToken(), nil)
	stop.Body.Close()
	s.Equal(http.StatusOK, stop.StatusCode)
}

func (s *Suite) TestToggleJobTrigger() {
	start := s.doRequest(http.MethodPost, "/api/v1/admin/jobs/cleanup/start", s.adminToken(), nil)
	start.Body.Close()
	s.Equal(http.StatusOK, start.StatusCode)

	list := s.doRequest(http.MethodGet, "/api/v1/admin/jobs", s.adminToken(), nil)
	s.Equal(http.StatusOK, list.StatusCode)

	var jobs []service.JobStatus
	s.decodeJSON(list, &jobs)
	for _, job := range jobs {
		s.Equal(job.Name == domain.JobTypeCleanup, job.Armed)
	}

	stop := s.doRequest(http.MethodPost, "/api/v1/admin/jobs/cleanup/stop", s.adminToken(), nil)
	stop.Body.Close()
	s.Equal(http.StatusOK, stop.StatusCode)

	missing := s.doRequest(http.MethodPost, "/api/v1/admin/jobs/no-such-job/start", s.adminToken(), nil)
	missing.Body.Close()
	s.Equal(http.StatusNotFound, missing.StatusCode)
}
