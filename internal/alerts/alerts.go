// Package alerts notifies external channels about run outcomes. Sinks are
// fire-and-forget: a notification failure is logged but never fails the
// run that triggered it.
package alerts

import (
	"context"
	"log/slog"
	"time"
)

// Event types emitted by the pipeline.
const (
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"
)

// Event describes a run outcome for external consumers.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`

	Ingested int64 `json:"ingested"`
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
	Written  int64 `json:"written"`

	ArtifactURI string `json:"artifact_uri,omitempty"`
	FailedStage string `json:"failed_stage,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Notifier delivers run events to one alerting channel.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
	Close() error
}

// Config selects and configures the alert sinks.
type Config struct {
	WebhookURL string

	KafkaBrokers []string
	KafkaTopic   string
}

// NewNotifier builds the configured notifier chain. The log sink is always
// present; webhook and Kafka sinks are added when configured.
func NewNotifier(cfg Config, logger *slog.Logger) Notifier {
	notifiers := []Notifier{NewLogNotifier(logger)}

	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, NewWebhookNotifier(cfg.WebhookURL))
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		notifiers = append(notifiers, NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic))
	}

	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return &MultiNotifier{notifiers: notifiers}
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, evt Event) error {
	attrs := []any{
		"run_id", evt.RunID,
		"ingested", evt.Ingested,
		"accepted", evt.Accepted,
		"rejected", evt.Rejected,
		"written", evt.Written,
	}
	switch evt.Type {
	case EventRunFailed:
		attrs = append(attrs, "failed_stage", evt.FailedStage, "error", evt.Error)
		n.logger.Warn("ALERT: pipeline run failed", attrs...)
	default:
		n.logger.Info("pipeline run completed", append(attrs, "artifact_uri", evt.ArtifactURI)...)
	}
	return nil
}

func (n *LogNotifier) Close() error { return nil }

// MultiNotifier fans an event out to every sink and returns the last
// failure, so one broken channel does not hide the others.
type MultiNotifier struct {
	notifiers []Notifier
}

func (m *MultiNotifier) Notify(ctx context.Context, evt Event) error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, evt); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (m *MultiNotifier) Close() error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
