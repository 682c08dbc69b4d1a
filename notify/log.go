package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes codes to a logger instead of delivering them. It lets a
// development instance run without a mail relay; configuration refuses it in
// production.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLog returns a notifier writing to logger, or slog.Default when nil.
func NewLog(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// DeliverCode logs the code at info level and never fails.
func (n *LogNotifier) DeliverCode(ctx context.Context, address, code string, purpose Purpose) error {
	n.logger.InfoContext(ctx, "one-time code issued",
		slog.String("address", address),
		slog.String("purpose", string(purpose)),
		slog.String("code", code),
	)
	return nil
}
