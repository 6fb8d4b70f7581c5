package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/writeuphq/writeupd/internal/store"
)

// Notification describes the outcome of one ingestion run worth telling
// someone about.
type Notification struct {
	Feed     string          `json:"feed"`
	Created  int             `json:"created"`
	Writeups []store.Writeup `json:"writeups"`
}

// Notifier delivers notifications to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
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

// topWriteups caps the writeups shown inline in a message.
func topWriteups(n *Notification, limit int) []store.Writeup {
	if len(n.Writeups) < limit {
		limit = len(n.Writeups)
	}
	return n.Writeups[:limit]
}
