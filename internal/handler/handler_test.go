package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"eventattend/internal/attendance"
	"eventattend/internal/auth"
)

type testServer struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	now := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	svc := attendance.NewService(attendance.NewMemoryRepository(), attendance.WithClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))
	hash, err := auth.HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	signer := auth.NewSigner("test-key", "eventattend", time.Minute, time.Hour)
	h := New(svc, signer, auth.NewAdmin("admin", hash), opts...)

	r := gin.New()
	h.Register(r)
	s := &testServer{t: t, router: r}

	var tokens auth.TokenPair
	s.mustDo(http.MethodPost, "/v1/login", gin.H{"username": "admin", "password": "pw"}, http.StatusOK, &tokens)
	s.token = tokens.AccessToken
	return s
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			s.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) mustDo(method, path string, body any, want int, out any) {
	s.t.Helper()
	w := s.do(method, path, body)
	if w.Code != want {
		s.t.Fatalf("%s %s = %d, want %d: %s", method, path, w.Code, want, w.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			s.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
}

func TestAttendanceFlow(t *testing.T) {
	s := newTestServer(t)

	var ev attendance.MasterEvent
	s.mustDo(http.MethodPost, "/v1/events", gin.H{"title": "Yoga", "location": "Hall"}, http.StatusCreated, &ev)

	var inst attendance.Instance
	s.mustDo(http.MethodPost, "/v1/events/"+ev.ID+"/instances", gin.H{
		"start_date":          "2024-01-01",
		"recurrence":          "weekly",
		"recurrence_end_date": "2024-01-31",
		"start_time":          "18:30",
	}, http.StatusCreated, &inst)

	ids := map[string]string{}
	for _, name := range []string{"Ann", "Ben", "Cid"} {
		var p attendance.Participant
		s.mustDo(http.MethodPost, "/v1/participants", gin.H{"name": name}, http.StatusCreated, &p)
		ids[name] = p.ID
		s.mustDo(http.MethodPut, "/v1/instances/"+inst.ID+"/participants/"+p.ID, nil, http.StatusNoContent, nil)
	}
	// Registering again is a no-op.
	s.mustDo(http.MethodPut, "/v1/instances/"+inst.ID+"/participants/"+ids["Ann"], nil, http.StatusNoContent, nil)

	s.mustDo(http.MethodPut, "/v1/instances/"+inst.ID+"/attendance/"+ids["Ann"], gin.H{"status": "present"}, http.StatusOK, nil)
	s.mustDo(http.MethodPut, "/v1/instances/"+inst.ID+"/attendance/"+ids["Ben"], gin.H{"status": "sick"}, http.StatusOK, nil)

	var rep attendance.InstanceReport
	s.mustDo(http.MethodGet, "/v1/instances/"+inst.ID+"/report", nil, http.StatusOK, &rep)
	if rep.Report.TotalRegistered != 3 || rep.Report.PresentCount != 1 || rep.Report.Rate != 33.3 {
		t.Errorf("report = %+v", rep.Report)
	}
	if rep.Title != "Yoga" || len(rep.Participants) != 3 {
		t.Errorf("report rows = %+v", rep)
	}

	var active struct {
		Instances []attendance.Instance `json:"instances"`
	}
	s.mustDo(http.MethodGet, "/v1/instances?date=2024-01-15", nil, http.StatusOK, &active)
	if len(active.Instances) != 1 {
		t.Errorf("active on a Monday = %d, want 1", len(active.Instances))
	}
	s.mustDo(http.MethodGet, "/v1/instances?date=2024-01-16", nil, http.StatusOK, &active)
	if len(active.Instances) != 0 {
		t.Errorf("active on a Tuesday = %d, want 0", len(active.Instances))
	}

	var dash attendance.Dashboard
	s.mustDo(http.MethodGet, "/v1/dashboard", nil, http.StatusOK, &dash)
	if dash.Date.String() != "2024-01-08" || len(dash.Instances) != 1 {
		t.Errorf("dashboard = %+v", dash)
	}

	var dates struct {
		Dates []string `json:"dates"`
	}
	s.mustDo(http.MethodGet, "/v1/instances/"+inst.ID+"/dates?from=2024-01-01&to=2024-02-29", nil, http.StatusOK, &dates)
	if strings.Join(dates.Dates, ",") != "2024-01-01,2024-01-08,2024-01-15,2024-01-22,2024-01-29" {
		t.Errorf("dates = %v", dates.Dates)
	}

	var er attendance.EventReport
	s.mustDo(http.MethodGet, "/v1/events/"+ev.ID+"/report", nil, http.StatusOK, &er)
	if er.Report.PresentCount != 1 || len(er.Instances) != 1 {
		t.Errorf("event report = %+v", er)
	}

	var pr attendance.ParticipantReport
	s.mustDo(http.MethodGet, "/v1/participants/"+ids["Ben"]+"/report", nil, http.StatusOK, &pr)
	if pr.Summary.Registered != 1 || pr.Summary.Counts[attendance.StatusSick] != 1 {
		t.Errorf("participant report = %+v", pr.Summary)
	}

	s.mustDo(http.MethodDelete, "/v1/instances/"+inst.ID+"/participants/"+ids["Cid"], nil, http.StatusNoContent, nil)
	var registered struct {
		Participants []attendance.Participant `json:"participants"`
	}
	s.mustDo(http.MethodGet, "/v1/instances/"+inst.ID+"/participants", nil, http.StatusOK, &registered)
	if len(registered.Participants) != 2 {
		t.Errorf("registered after unregister = %d", len(registered.Participants))
	}

	w := s.do(http.MethodGet, "/v1/calendar.ics", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar") {
		t.Fatalf("calendar = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if body := w.Body.String(); !strings.Contains(body, "BEGIN:VEVENT") || !strings.Contains(body, "FREQ=WEEKLY") {
		t.Errorf("calendar body = %s", body)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	var ev attendance.MasterEvent
	s.mustDo(http.MethodPost, "/v1/events", gin.H{"title": "Choir"}, http.StatusCreated, &ev)
	var inst attendance.Instance
	s.mustDo(http.MethodPost, "/v1/events/"+ev.ID+"/instances", gin.H{"start_date": "2024-01-10"}, http.StatusCreated, &inst)
	var p attendance.Participant
	s.mustDo(http.MethodPost, "/v1/participants", gin.H{"name": "Dee", "email": "dee@example.com"}, http.StatusCreated, &p)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown event", http.MethodGet, "/v1/events/nope", nil, http.StatusNotFound},
		{"unknown instance report", http.MethodGet, "/v1/instances/nope/report", nil, http.StatusNotFound},
		{"instance for unknown event", http.MethodPost, "/v1/events/nope/instances", gin.H{"start_date": "2024-01-01"}, http.StatusNotFound},
		{"missing title", http.MethodPost, "/v1/events", gin.H{}, http.StatusBadRequest},
		{"bad recurrence", http.MethodPost, "/v1/events/" + ev.ID + "/instances", gin.H{"start_date": "2024-01-01", "recurrence": "yearly"}, http.StatusBadRequest},
		{"end before start", http.MethodPost, "/v1/events/" + ev.ID + "/instances", gin.H{"start_date": "2024-01-10", "recurrence": "daily", "recurrence_end_date": "2024-01-01"}, http.StatusBadRequest},
		{"missing start date", http.MethodPost, "/v1/events/" + ev.ID + "/instances", gin.H{"recurrence": "daily"}, http.StatusBadRequest},
		{"malformed start date", http.MethodPost, "/v1/events/" + ev.ID + "/instances", gin.H{"start_date": "10/01/2024"}, http.StatusBadRequest},
		{"bad dashboard date", http.MethodGet, "/v1/dashboard?date=tomorrow", nil, http.StatusBadRequest},
		{"window too large", http.MethodGet, "/v1/instances/" + inst.ID + "/dates?from=2024-01-01&to=2026-01-01", nil, http.StatusBadRequest},
		{"unknown status", http.MethodPut, "/v1/instances/" + inst.ID + "/attendance/" + p.ID, gin.H{"status": "late"}, http.StatusBadRequest},
		{"not registered", http.MethodPut, "/v1/instances/" + inst.ID + "/attendance/" + p.ID, gin.H{"status": "present"}, http.StatusBadRequest},
		{"register unknown participant", http.MethodPut, "/v1/instances/" + inst.ID + "/participants/nope", nil, http.StatusNotFound},
		{"duplicate email", http.MethodPost, "/v1/participants", gin.H{"name": "Dee 2", "email": "DEE@example.com"}, http.StatusConflict},
		{"invalid email", http.MethodPost, "/v1/participants", gin.H{"name": "Eve", "email": "not-an-email"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] == nil {
				t.Errorf("error body = %s", w.Body.String())
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)
	s.token = ""
	if w := s.do(http.MethodGet, "/v1/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/v1/login", gin.H{"username": "admin", "password": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad password: %d", w.Code)
	}
	if w := s.do(http.MethodPost, "/v1/login", gin.H{"username": "admin"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing password: %d", w.Code)
	}
}

func TestRefreshToken(t *testing.T) {
	s := newTestServer(t)
	s.token = ""
	var tokens auth.TokenPair
	s.mustDo(http.MethodPost, "/v1/login", gin.H{"username": "admin", "password": "pw"}, http.StatusOK, &tokens)
	var next auth.TokenPair
	s.mustDo(http.MethodPost, "/v1/token/refresh", gin.H{"refresh_token": tokens.RefreshToken}, http.StatusOK, &next)
	if next.AccessToken == "" {
		t.Fatal("empty access token")
	}
	if w := s.do(http.MethodPost, "/v1/token/refresh", gin.H{"refresh_token": tokens.AccessToken}); w.Code != http.StatusUnauthorized {
		t.Errorf("access token as refresh: %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t,
		WithHealthCheck("db", func(context.Context) bool { return true }),
		WithHealthCheck("redis", func(context.Context) bool { return false }),
	)
	var body map[string]any
	s.mustDo(http.MethodGet, "/healthz", nil, http.StatusServiceUnavailable, &body)
	if body["db"] != true || body["redis"] != false || body["status"] != "degraded" {
		t.Errorf("healthz = %v", body)
	}

	ok := newTestServer(t)
	ok.mustDo(http.MethodGet, "/healthz", nil, http.StatusOK, nil)
}
