package auth

import "context"

// Notifier delivers messages to account holders. Delivery is outside the
// package, the service only calls Send.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NotifierFunc adapts a function into a Notifier.
type NotifierFunc func(ctx context.Context, to, subject, body string) error

// Send satisfies the Notifier interface.
func (f NotifierFunc) Send(ctx context.Context, to, subject, body string) error {
	if f == nil {
		return nil
	}
	return f(ctx, to, subject, body)
}

// LogNotifier only logs the recipient and subject. The body carries the
// reset link and is never logged.
type LogNotifier struct {
	logger Logger
}

func NewLogNotifier(logger Logger) *LogNotifier {
	return &LogNotifier{logger: normalizeLogger(logger)}
}

func (n *LogNotifier) Send(_ context.Context, to, subject, _ string) error {
	n.logger.Info("notification sent", "to", to, "subject", subject)
	return nil
}
