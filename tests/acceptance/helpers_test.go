package acceptance

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// createUser seeds a rider account and returns its id.
func (s *Suite) createUser(email string, connected bool) string {
	var id string
	query := `
		INSERT INTO users (email, name, status, auto_sync_enabled)
		VALUES ($1, $2, 'active', true)
		RETURNING id
	`
	err := s.Postgres.DB.QueryRow(query, email, "Test Rider").Scan(&id)
	s.Require().NoError(err, "Failed to seed user")

	if connected {
		update := `
			UPDATE users
			SET strava_access_token = 'seed-access',
			    strava_refresh_token = 'seed-refresh',
			    strava_token_expires_at = $2
			WHERE id = $1
		`
		_, err = s.Postgres.DB.Exec(update, id, time.Now().Add(time.Hour))
		s.Require().NoError(err, "Failed to seed credential")
	}

	return id
}

// userToken issues a bearer token for the given seeded user.
func (s *Suite) userToken(userID, email string) string {
	token, err := s.JWTManager.GenerateAccessToken(userID, email)
	s.Require().NoError(err, "Failed to generate user token")
	return token
}

func (s *Suite) doRequest(method, path, token string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err, "Failed to marshal request body")
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.BaseURL+path, reader)
	s.Require().NoError(err, "Failed to build request")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err, "Failed to make request")
	return resp
}

func (s *Suite) decodeJSON(resp *http.Response, out any) {
	defer resp.Body.Close()
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(out), "Failed to decode response")
}
