package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/x11host/internal/lifecycle"
	"github.com/GriffinCanCode/x11host/internal/native"
	"github.com/GriffinCanCode/x11host/internal/terminal"
)

// eventTimeout bounds how long a request waits for its event to be handled
const eventTimeout = 30 * time.Second

// Lifecycle is the coordinator as seen by the handlers
type Lifecycle interface {
	Do(ctx context.Context, kind lifecycle.EventKind) error
	State() lifecycle.State
	Ready() <-chan struct{}
}

// SessionInfo describes the current shell session
type SessionInfo interface {
	Info() (*terminal.SessionInfo, bool)
}

// NativeState reports the native server state
type NativeState interface {
	State() native.State
}

// Permission is the storage permission flag
type Permission interface {
	Granted() bool
}

// PermissionSetter is a permission whose state can be pushed by the host
type PermissionSetter interface {
	Permission
	Set(granted bool) bool
}

// TerminalView reports attached terminal clients
type TerminalView interface {
	Clients() int
	CursorBlink() bool
	LastStatus() (terminal.Status, bool)
}

// Handlers contains the control API handlers
type Handlers struct {
	lifecycle  Lifecycle
	sessions   SessionInfo
	native     NativeState
	permission Permission
	view       TerminalView
	version    string
}

// NewHandlers creates a handler set; view may be nil
func NewHandlers(lc Lifecycle, sessions SessionInfo, nat NativeState, perm Permission, view TerminalView, version string) *Handlers {
	return &Handlers{
		lifecycle:  lc,
		sessions:   sessions,
		native:     nat,
		permission: perm,
		view:       view,
		version:    version,
	}
}

// Register mounts the handlers on router
func (h *Handlers) Register(router gin.IRoutes) {
	router.GET("/health", h.Health)
	router.GET("/status", h.Status)
	router.POST("/lifecycle/resume", h.Resume)
	router.POST("/lifecycle/pause", h.Pause)
	router.POST("/restart", h.Restart)
	router.PUT("/permission", h.SetPermission)
}

// Health handles liveness checks
func (h *Handlers) Health(c *gin.Context) {
	st := h.lifecycle.State()
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": h.version,
		"phase":   st.Phase,
		"ready":   h.ready(),
	})
}

// Status reports every component's state
func (h *Handlers) Status(c *gin.Context) {
	st := h.lifecycle.State()

	resp := gin.H{
		"lifecycle": gin.H{
			"phase":   st.Phase,
			"visible": st.Visible,
			"ready":   h.ready(),
		},
		"native":     h.native.State(),
		"permission": gin.H{"granted": h.permission.Granted()},
		"session":    nil,
	}
	if info, ok := h.sessions.Info(); ok {
		resp["session"] = info
	}
	if h.view != nil {
		term := gin.H{
			"clients":      h.view.Clients(),
			"cursor_blink": h.view.CursorBlink(),
		}
		if last, ok := h.view.LastStatus(); ok {
			term["status"] = last
		}
		resp["terminal"] = term
	}

	c.JSON(http.StatusOK, resp)
}

// Resume delivers a Resumed event
func (h *Handlers) Resume(c *gin.Context) {
	h.dispatch(c, lifecycle.EventResumed)
}

// Pause delivers a Paused event
func (h *Handlers) Pause(c *gin.Context) {
	h.dispatch(c, lifecycle.EventPaused)
}

// Restart pauses and resumes the native server. Refused before bootstrap
// completes.
func (h *Handlers) Restart(c *gin.Context) {
	if !h.ready() {
		c.JSON(http.StatusConflict, gin.H{
			"error": "not ready",
			"phase": h.lifecycle.State().Phase,
		})
		return
	}
	h.dispatch(c, lifecycle.EventRestartRequested)
}

// PermissionRequest is the body of PUT /permission
type PermissionRequest struct {
	Granted *bool `json:"granted" binding:"required"`
}

// SetPermission pushes the storage permission state. The session picks the
// change up on the next resume.
func (h *Handlers) SetPermission(c *gin.Context) {
	setter, ok := h.permission.(PermissionSetter)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "permission is probed from storage"})
		return
	}

	var req PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	changed := setter.Set(*req.Granted)
	c.JSON(http.StatusOK, gin.H{
		"granted": *req.Granted,
		"changed": changed,
	})
}

func (h *Handlers) dispatch(c *gin.Context, kind lifecycle.EventKind) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), eventTimeout)
	defer cancel()

	if err := h.lifecycle.Do(ctx, kind); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, lifecycle.ErrStopped):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	st := h.lifecycle.State()
	c.JSON(http.StatusOK, gin.H{
		"event":   kind,
		"phase":   st.Phase,
		"visible": st.Visible,
	})
}

func (h *Handlers) ready() bool {
	select {
	case <-h.lifecycle.Ready():
		return true
	default:
		return false
	}
}
