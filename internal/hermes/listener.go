package hermes

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// RunFunc executes one requested run.
type RunFunc func(ctx context.Context, req RunRequestEvent) error

// ListenRunRequests subscribes to run requests and hands each decoded
// request to run. Each run gets its own timeout.
func ListenRunRequests(c Client, timeout time.Duration, logger *slog.Logger, run RunFunc) error {
	return c.Subscribe(SubjectRunRequest, func(subject string, data []byte) {
		var req RunRequestEvent
		if err := json.Unmarshal(data, &req); err != nil {
			logger.Warn("invalid run request", "subject", subject, "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := run(ctx, req); err != nil {
			logger.Error("requested run failed", "name", req.Input.Name, "source", req.Source, "error", err)
		}
	})
}
