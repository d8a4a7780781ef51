package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"eventattend/internal/attendance"
	"eventattend/internal/metrics"
	"eventattend/internal/queue"
)

// Worker refreshes cached reports when instances change and precomputes the daily
// dashboard.
type Worker struct {
	svc *attendance.Service
	q   queue.Queue
	log *slog.Logger
}

func New(svc *attendance.Service, q queue.Queue, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{svc: svc, q: q, log: log}
}

// Run consumes messages until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	w.log.Info("worker started, waiting for messages")
	for msg := range messages {
		result := "ok"
		if err := w.Handle(ctx, msg); err != nil {
			result = "error"
			w.log.Warn("message failed", "type", msg.Type, "body", msg.Body, "err", err)
		}
		metrics.QueueMessages.WithLabelValues(msg.Type, result).Inc()
	}
	w.log.Info("worker stopped")
	return nil
}

// Handle processes one message. Unknown types are ignored.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case queue.TypeInstanceChanged:
		rep, err := w.svc.RefreshInstanceReport(ctx, msg.Body)
		if err != nil {
			return err
		}
		w.log.Debug("report refreshed", "instance_id", msg.Body,
			"present", rep.Report.PresentCount, "registered", rep.Report.TotalRegistered)
		return nil
	default:
		w.log.Debug("ignoring message", "type", msg.Type)
		return nil
	}
}

// PrecomputeDashboard builds today's dashboard, warming the report cache.
func (w *Worker) PrecomputeDashboard(ctx context.Context) (attendance.Dashboard, error) {
	start := time.Now()
	dash, err := w.svc.Dashboard(ctx, w.svc.Today())
	if err != nil {
		return attendance.Dashboard{}, err
	}
	w.log.Info("dashboard precomputed", "date", dash.Date.String(),
		"active_instances", len(dash.Instances), "took", time.Since(start))
	return dash, nil
}

// Schedule starts a cron running PrecomputeDashboard on spec in loc. Stop the returned
// cron to end it.
func (w *Worker) Schedule(ctx context.Context, spec string, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := w.PrecomputeDashboard(jobCtx); err != nil {
			w.log.Error("dashboard precompute failed", "err", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard cron %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
