// Package notify pushes transaction lifecycle events to chat channels.
// Events are filtered by status so operators can subscribe to failures only.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/dualdex/internal/domain"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a TxEvent out to every Sender.
type Notifier struct {
	senders []Sender
	allowed map[domain.TxStatus]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. Only events whose status appears in
// statuses are delivered; an empty list delivers everything.
func NewNotifier(senders []Sender, statuses []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.TxStatus]bool, len(statuses))
	for _, s := range statuses {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			allowed[domain.TxStatus(s)] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// ObserveTx implements domain.TxObserver.
func (n *Notifier) ObserveTx(ctx context.Context, evt domain.TxEvent) error {
	if len(n.allowed) > 0 && !n.allowed[evt.Status] {
		return nil
	}
	title, message := Format(evt)
	return n.dispatch(ctx, title, message)
}

// Format renders evt as a title and a multi-line body.
func Format(evt domain.TxEvent) (string, string) {
	p := evt.Pending
	title := fmt.Sprintf("%s %s on %s", p.Operation, evt.Status, p.Chain)

	var b strings.Builder
	fmt.Fprintf(&b, "tx: %s", p.ID)
	if p.OpID != "" {
		fmt.Fprintf(&b, "\nop: %s", p.OpID)
	}
	if evt.Err != nil {
		fmt.Fprintf(&b, "\nerror: %s", evt.Err)
	}
	return title, b.String()
}

// dispatch delivers to every sender. One failing sender does not stop the
// rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

var _ domain.TxObserver = (*Notifier)(nil)
