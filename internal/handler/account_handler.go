package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/veloplan/sync-service/internal/dto"
	"github.com/veloplan/sync-service/internal/service"
	"github.com/veloplan/sync-service/internal/strava"
)

// AccountHandler handles the per-user Strava surface
type AccountHandler struct {
	account     *service.AccountService
	syncService *service.SyncService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(account *service.AccountService, syncService *service.SyncService) *AccountHandler {
	return &AccountHandler{
		account:     account,
		syncService: syncService,
	}
}

func userID(c *gin.Context) (string, bool) {
	id, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "User ID not found in context",
		})
		return "", false
	}
	return id.(string), true
}

// Connect starts the OAuth flow
// @Summary Get the Strava consent URL
// @Tags strava
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.ConnectResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /strava/connect [get]
func (h *AccountHandler) Connect(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	url, err := h.account.ConnectURL(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "Not found",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.ConnectResponse{URL: url})
}

// Callback completes the OAuth flow
// @Summary OAuth callback
// @Tags strava
// @Produce json
// @Param state query string true "Signed state"
// @Param code query string true "Authorization code"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /auth/strava/callback [get]
func (h *AccountHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: "state and code query parameters are required",
		})
		return
	}

	if _, err := h.account.HandleCallback(c.Request.Context(), state, code); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Strava account connected"})
}

// SyncNow triggers an immediate sync for the caller
// @Summary Sync now
// @Tags strava
// @Security BearerAuth
// @Produce json
// @Success 200 {object} domain.SyncResult
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /strava/sync [post]
func (h *AccountHandler) SyncNow(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	result, err := h.syncService.SyncUser(c.Request.Context(), id)
	if err != nil {
		h.writeSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AccountHandler) writeSyncError(c *gin.Context, err error) {
	var refreshErr *service.RefreshFailedError
	switch {
	case errors.Is(err, service.ErrNotConnected):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Bad request",
			Message: "Strava account is not connected",
		})
	case errors.As(err, &refreshErr):
		c.JSON(http.StatusBadGateway, dto.ErrorResponse{
			Error:   "Bad gateway",
			Message: err.Error(),
		})
	case strava.IsKind(err, strava.KindRateLimited):
		c.JSON(http.StatusTooManyRequests, dto.ErrorResponse{
			Error:   "Rate limited",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal error",
			Message: err.Error(),
		})
	}
}

// SetAutoSync toggles automatic sync for the caller
// @Summary Toggle auto sync
// @Tags strava
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body dto.AutoSyncRequest true "Auto sync request"
// @Success 200 {object} domain.User
// @Failure 400 {object} dto.ErrorResponse
// @Router /strava/auto-sync [put]
func (h *AccountHandler) SetAutoSync(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req dto.AutoSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: err.Error(),
		})
		return
	}

	user, err := h.account.SetAutoSync(c.Request.Context(), id, *req.Enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, user)
}

// SyncStatus returns the caller's sync health
// @Summary Get sync status
// @Tags strava
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.SyncStatusResponse
// @Router /strava/status [get]
func (h *AccountHandler) SyncStatus(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	status, err := h.account.SyncStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "Internal error",
			Message: err.Error(),
		})
		return
	}

	resp := dto.SyncStatusResponse{
		Connected:        status.User.HasCredential(),
		AutoSyncEnabled:  status.User.AutoSyncEnabled,
		TotalActivities:  status.TotalActivities,
		RecentActivities: status.RecentActivities,
		HasRecentErrors:  status.HasRecentErrors,
	}
	if status.User.LastSyncAt != nil {
		formatted := status.User.LastSyncAt.UTC().Format(time.RFC3339)
		resp.LastSyncAt = &formatted
	}

	c.JSON(http.StatusOK, resp)
}

// ActivityStreams proxies the detail streams of one activity
// @Summary Get activity streams
// @Tags strava
// @Security BearerAuth
// @Produce json
// @Param id path int true "Strava activity ID"
// @Param keys query string false "Comma separated stream fields"
// @Success 200 {object} strava.StreamSet
// @Failure 400 {object} dto.ErrorResponse
// @Router /strava/activities/{id}/streams [get]
func (h *AccountHandler) ActivityStreams(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	stravaID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Message: "activity id must be an integer",
		})
		return
	}

	var fields []string
	if keys := c.Query("keys"); keys != "" {
		fields = strings.Split(keys, ",")
	}

	streams, err := h.account.ActivityStreams(c.Request.Context(), id, stravaID, fields)
	if err != nil {
		h.writeSyncError(c, err)
		return
	}

	c.JSON(http.StatusOK, streams)
}
