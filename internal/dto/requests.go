package dto

// AutoSyncRequest toggles automatic activity sync for a user
type AutoSyncRequest struct {
	Enabled *bool `json:"enabled" binding:"required" validate:"required"`
}

// ConnectResponse carries the OAuth consent URL
type ConnectResponse struct {
	URL string `json:"url"`
}

// SyncStatusResponse represents a user's sync health
type SyncStatusResponse struct {
	Connected        bool    `json:"connected"`
	AutoSyncEnabled  bool    `json:"auto_sync_enabled"`
	LastSyncAt       *string `json:"last_sync_at"`
	TotalActivities  int     `json:"total_activities"`
	RecentActivities int     `json:"recent_activities"`
	HasRecentErrors  bool    `json:"has_recent_errors"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}
