package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/veloplan/sync-service/internal/config"
	"golang.org/x/oauth2"
)

// Credentials is the token triple returned by an exchange or refresh.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenGrant is the result of exchanging an authorization code; it
// carries the athlete identity alongside the credential.
type TokenGrant struct {
	Credentials
	AthleteID int64
}

// Activity is the summary record returned by the activity listing.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	Distance           float64   `json:"distance"`
	MovingTime         int       `json:"moving_time"`
	ElapsedTime        int       `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	AverageSpeed       float64   `json:"average_speed"`
	MaxSpeed           float64   `json:"max_speed"`
	AverageCadence     *float64  `json:"average_cadence"`
	AverageWatts       *float64  `json:"average_watts"`
	Kilojoules         *float64  `json:"kilojoules"`
	AverageHeartrate   *float64  `json:"average_heartrate"`
	MaxHeartrate       *float64  `json:"max_heartrate"`
	SufferScore        *float64  `json:"suffer_score"`
	Map                *struct {
		SummaryPolyline string `json:"summary_polyline"`
	} `json:"map"`
}

// Stream is one data series of an activity detail stream.
type Stream struct {
	Data         json.RawMessage `json:"data"`
	SeriesType   string          `json:"series_type"`
	OriginalSize int             `json:"original_size"`
	Resolution   string          `json:"resolution"`
}

// StreamSet maps stream field name to its series.
type StreamSet map[string]Stream

// DefaultStreamFields is the field list requested when callers do not
// specify one.
var DefaultStreamFields = []string{
	"time", "distance", "latlng", "altitude", "velocity_smooth",
	"heartrate", "cadence", "watts", "temp", "moving", "grade_smooth",
}

// Client is a stateless wrapper over the Strava v3 API. It classifies
// failures but never retries; retry policy belongs to the caller.
type Client struct {
	conf       *oauth2.Config
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Strava API client
func NewClient(cfg config.StravaConfig) *Client {
	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes: []string{"read,activity:read_all"},
		},
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout.Duration},
	}
}

// AuthorizationURL builds the OAuth consent URL for the connect flow.
func (c *Client) AuthorizationURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for the initial credential.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.conf.Exchange(ctx, code)
	if err != nil {
		return nil, wrapOAuthError("token exchange", err)
	}

	grant := &TokenGrant{
		Credentials: Credentials{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ExpiresAt:    token.Expiry,
		},
	}

	// Strava returns the athlete object alongside the token.
	if athlete, ok := token.Extra("athlete").(map[string]interface{}); ok {
		if id, ok := athlete["id"].(float64); ok {
			grant.AthleteID = int64(id)
		}
	}

	return grant, nil
}

// RefreshToken trades a refresh token for a fresh credential pair.
// The stored credential is not touched here; persisting the result is
// the token manager's job.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Credentials, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	source := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, wrapOAuthError("token refresh", err)
	}

	newRefresh := token.RefreshToken
	if newRefresh == "" {
		// The provider may omit the refresh token when it is unchanged.
		newRefresh = refreshToken
	}

	return &Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    token.Expiry,
	}, nil
}

// ListActivitiesSince fetches the athlete's activities recorded after
// the given instant. The result is a finite window in the remote
// service's default order; no ordering guarantee beyond that.
func (c *Client) ListActivitiesSince(ctx context.Context, accessToken string, since time.Time, pageSize int) ([]Activity, error) {
	params := url.Values{}
	params.Set("after", strconv.FormatInt(since.Unix(), 10))
	params.Set("per_page", strconv.Itoa(pageSize))

	endpoint := fmt.Sprintf("%s/athlete/activities?%s", c.baseURL, params.Encode())

	var activities []Activity
	if err := c.getJSON(ctx, "list activities", endpoint, accessToken, &activities); err != nil {
		return nil, err
	}

	return activities, nil
}

// GetActivityStreams fetches the detail streams of one activity for the
// requested fields.
func (c *Client) GetActivityStreams(ctx context.Context, accessToken string, activityID int64, fields []string) (StreamSet, error) {
	if len(fields) == 0 {
		fields = DefaultStreamFields
	}

	params := url.Values{}
	params.Set("keys", strings.Join(fields, ","))
	params.Set("key_by_type", "true")

	endpoint := fmt.Sprintf("%s/activities/%d/streams?%s", c.baseURL, activityID, params.Encode())

	streams := StreamSet{}
	if err := c.getJSON(ctx, "get activity streams", endpoint, accessToken, &streams); err != nil {
		return nil, err
	}

	return streams, nil
}

// getJSON issues an authenticated GET and decodes the response,
// classifying any non-2xx status.
func (c *Client) getJSON(ctx context.Context, operation, endpoint, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: KindTransient, Operation: operation, Body: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return newAPIError(operation, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}

	return nil
}
