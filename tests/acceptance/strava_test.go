package acceptance

import (
	"net/http"

	"github.com/veloplan/sync-service/internal/dto"
)

func (s *Suite) TestSyncStatusDisconnected() {
	userID := s.createUser("rider@example.com", false)

	resp := s.doRequest(http.MethodGet, "/api/v1/strava/status", s.userToken(userID, "rider@example.com"), nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var status dto.SyncStatusResponse
	s.decodeJSON(resp, &status)

	s.False(status.Connected)
	s.True(status.AutoSyncEnabled)
	s.Nil(status.LastSyncAt)
	s.Equal(0, status.TotalActivities)
	s.Equal(0, status.RecentActivities)
	s.False(status.HasRecentErrors)
}

func (s *Suite) TestSyncStatusConnected() {
	userID := s.createUser("rider@example.com", true)

	resp := s.doRequest(http.MethodGet, "/api/v1/strava/status", s.userToken(userID, "rider@example.com"), nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var status dto.SyncStatusResponse
	s.decodeJSON(resp, &status)

	s.True(status.Connected)
}

func (s *Suite) TestConnectReturnsConsentURL() {
	userID := s.createUser("rider@example.com", false)

	resp := s.doRequest(http.MethodGet, "/api/v1/strava/connect", s.userToken(userID, "rider@example.com"), nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	var connect dto.ConnectResponse
	s.decodeJSON(resp, &connect)

	s.Contains(connect.URL, "https://www.strava.com/oauth/authorize")
	s.Contains(connect.URL, "state=")
	s.Contains(connect.URL, "client_id=test-client-id")
}

func (s *Suite) TestToggleAutoSync() {
	userID := s.createUser("rider@example.com", true)
	token := s.userToken(userID, "rider@example.com")

	enabled := false
	resp := s.doRequest(http.MethodPut, "/api/v1/strava/auto-sync", token, dto.AutoSyncRequest{Enabled: &enabled})
	s.Equal(http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	status := s.doRequest(http.MethodGet, "/api/v1/strava/status", token, nil)
	s.Equal(http.StatusOK, status.StatusCode)

	var body dto.SyncStatusResponse
	s.decodeJSON(status, &body)
	s.False(body.AutoSyncEnabled)
}

func (s *Suite) TestSyncNowNotConnected() {
	userID := s.createUser("rider@example.com", false)

	resp := s.doRequest(http.MethodPost, "/api/v1/strava/sync", s.userToken(userID, "rider@example.com"), nil)
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *Suite) TestCallbackRejectsForgedState() {
	resp, err := http.Get(s.BaseURL + "/api/v1/auth/strava/callback?state=forged&code=any")
	s.Require().NoError(err, "Failed to make request")
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)
}
