package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"eventattend/internal/attendance"
	"eventattend/internal/auth"
	"eventattend/internal/schedule"
)

// ---------- Auth ----------

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.admin.Check(req.Username, req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	tokens, err := h.signer.Issue(req.Username, auth.RoleAdmin)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tokens, err := h.signer.Refresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// ---------- Master events ----------

type eventRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ev, err := h.svc.CreateMasterEvent(c.Request.Context(), req.Title, req.Description, req.Location)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ev)
}

func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.svc.MasterEvents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) GetEvent(c *gin.Context) {
	ev, err := h.svc.MasterEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	instances, err := h.svc.Instances(c.Request.Context(), ev.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": ev, "instances": instances})
}

func (h *Handler) EventReport(c *gin.Context) {
	rep, err := h.svc.EventReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// ---------- Instances ----------

type instanceRequest struct {
	Title      string         `json:"title"`
	StartDate  schedule.Date  `json:"start_date"`
	StartTime  string         `json:"start_time"`
	Recurrence string         `json:"recurrence"`
	Until      *schedule.Date `json:"recurrence_end_date"`
}

func (h *Handler) CreateInstance(c *gin.Context) {
	var req instanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inst, err := h.svc.CreateInstance(c.Request.Context(), attendance.NewInstance{
		MasterEventID: c.Param("id"),
		Title:         req.Title,
		StartTime:     req.StartTime,
		Start:         req.StartDate,
		Recurrence:    req.Recurrence,
		Until:         req.Until,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, inst)
}

// ListInstances lists every instance, or with ?date= only those active on that date.
func (h *Handler) ListInstances(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("date") == "" {
		instances, err := h.svc.Instances(ctx, c.Query("event_id"))
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"instances": instances})
		return
	}
	day, err := dateQuery(c, "date", h.svc.Today())
	if err != nil {
		h.fail(c, err)
		return
	}
	instances, err := h.svc.ActiveInstances(ctx, day)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": day, "instances": instances})
}

func (h *Handler) GetInstance(c *gin.Context) {
	inst, err := h.svc.Instance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

// InstanceDates lists active dates in [from, to]. from defaults to today and to to 30
// days after from.
func (h *Handler) InstanceDates(c *gin.Context) {
	from, err := dateQuery(c, "from", h.svc.Today())
	if err != nil {
		h.fail(c, err)
		return
	}
	to, err := dateQuery(c, "to", from.AddDays(30))
	if err != nil {
		h.fail(c, err)
		return
	}
	dates, err := h.svc.InstanceDates(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "dates": dates})
}

func (h *Handler) InstanceReport(c *gin.Context) {
	rep, err := h.svc.InstanceReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) ListRegistered(c *gin.Context) {
	people, err := h.svc.Registered(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": people})
}

func (h *Handler) RegisterParticipant(c *gin.Context) {
	if err := h.svc.Register(c.Request.Context(), c.Param("id"), c.Param("pid")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) UnregisterParticipant(c *gin.Context) {
	if err := h.svc.Unregister(c.Request.Context(), c.Param("id"), c.Param("pid")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type attendanceRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) SubmitAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := h.svc.SubmitAttendance(c.Request.Context(), c.Param("id"), c.Param("pid"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"instance_id":    e.InstanceID,
		"participant_id": e.ParticipantID,
		"status":         e.Status,
		"recorded_at":    e.RecordedAt,
	})
}

// ---------- Participants ----------

type participantRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"omitempty,email"`
}

func (h *Handler) CreateParticipant(c *gin.Context) {
	var req participantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.svc.CreateParticipant(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListParticipants(c *gin.Context) {
	people, err := h.svc.Participants(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": people})
}

func (h *Handler) GetParticipant(c *gin.Context) {
	p, err := h.svc.Participant(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ParticipantReport(c *gin.Context) {
	rep, err := h.svc.ParticipantReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// ---------- Dashboard and feed ----------

func (h *Handler) Dashboard(c *gin.Context) {
	day, err := dateQuery(c, "date", h.svc.Today())
	if err != nil {
		h.fail(c, err)
		return
	}
	dash, err := h.svc.Dashboard(c.Request.Context(), day)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *Handler) Calendar(c *gin.Context) {
	feed, err := h.svc.Feed(c.Request.Context(), h.calendar)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", "calendar.ics"))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}
