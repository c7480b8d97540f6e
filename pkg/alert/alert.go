package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elonfeng/hnpipe/pkg/asset"
)

// Notification reports the outcome of one materialization run.
type Notification struct {
	RunID      string         `json:"run_id"`
	Deployment string         `json:"deployment"`
	Status     string         `json:"status"`
	Tables     map[string]int `json:"tables"`
	Started    time.Time      `json:"started"`
	Duration   string         `json:"duration"`
	Error      string         `json:"error,omitempty"`
}

// FromResult builds a notification for a finished run.
func FromResult(deployment string, res *asset.Result) *Notification {
	status := "success"
	if !res.OK() {
		status = "failure"
	}
	return &Notification{
		RunID:      res.RunID,
		Deployment: deployment,
		Status:     status,
		Tables:     res.Rows,
		Started:    res.Started,
		Duration:   res.Duration.Round(time.Millisecond).String(),
		Error:      res.Error,
	}
}

// Notifier delivers run notifications to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new notification manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
