package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"eventattend/internal/attendance"
	"eventattend/internal/auth"
	"eventattend/internal/schedule"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the HTTP API on top of the attendance service.
type Handler struct {
	svc      *attendance.Service
	signer   *auth.Signer
	admin    *auth.Admin
	checks   map[string]HealthCheck
	calendar string
	log      *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithHealthCheck adds a dependency to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *Handler) { h.checks[name] = check }
}

// WithCalendarName sets the name of the iCalendar feed.
func WithCalendarName(name string) Option {
	return func(h *Handler) { h.calendar = name }
}

// WithLogger sets the logger used for unexpected request failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// New builds a Handler. Only callers holding an admin access token reach /v1 routes.
func New(svc *attendance.Service, signer *auth.Signer, admin *auth.Admin, opts ...Option) *Handler {
	h := &Handler{
		svc:      svc,
		signer:   signer,
		admin:    admin,
		checks:   map[string]HealthCheck{},
		calendar: "Events",
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1")
	v1.POST("/login", h.Login)
	v1.POST("/token/refresh", h.Refresh)

	api := v1.Group("", auth.Bearer(h.signer, auth.RoleAdmin))
	api.POST("/events", h.CreateEvent)
	api.GET("/events", h.ListEvents)
	api.GET("/events/:id", h.GetEvent)
	api.GET("/events/:id/report", h.EventReport)
	api.POST("/events/:id/instances", h.CreateInstance)

	api.GET("/instances", h.ListInstances)
	api.GET("/instances/:id", h.GetInstance)
	api.GET("/instances/:id/dates", h.InstanceDates)
	api.GET("/instances/:id/report", h.InstanceReport)
	api.GET("/instances/:id/participants", h.ListRegistered)
	api.PUT("/instances/:id/participants/:pid", h.RegisterParticipant)
	api.DELETE("/instances/:id/participants/:pid", h.UnregisterParticipant)
	api.PUT("/instances/:id/attendance/:pid", h.SubmitAttendance)

	api.POST("/participants", h.CreateParticipant)
	api.GET("/participants", h.ListParticipants)
	api.GET("/participants/:id", h.GetParticipant)
	api.GET("/participants/:id/report", h.ParticipantReport)

	api.GET("/dashboard", h.Dashboard)
	api.GET("/calendar.ics", h.Calendar)
}

func (h *Handler) Healthz(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for _, name := range names {
		ok := h.checks[name](c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// fail writes the JSON error response for err.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// dateQuery reads an optional YYYY-MM-DD query parameter.
func dateQuery(c *gin.Context, key string, fallback schedule.Date) (schedule.Date, error) {
	v := c.Query(key)
	if v == "" {
		return fallback, nil
	}
	d, err := schedule.ParseDate(v)
	if err != nil {
		return schedule.Date{}, fmt.Errorf("%w: %s: %v", attendance.ErrInvalidInput, key, err)
	}
	return d, nil
}
