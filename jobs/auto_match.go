package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/atlasbeton/atlasbeton/internal/jobs"
	"github.com/atlasbeton/atlasbeton/internal/recon"
)

// AutoReconciler runs one scored matching batch over unmatched transactions.
type AutoReconciler interface {
	AutoReconcile(ctx context.Context, threshold float64) (recon.AutoResult, error)
}

// NewAutoMatchHandler builds the asynq handler for the auto-reconcile task.
func NewAutoMatchHandler(service AutoReconciler, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AutoMatchPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}

		tracker := metrics.Track("recon_auto_match")
		result, err := service.AutoReconcile(ctx, payload.Threshold)
		if err != nil {
			logger.Error("auto-match job failed",
				slog.Float64("threshold", payload.Threshold), slog.Any("error", err))
			return tracker.End(err)
		}

		metrics.AddReconciled(string(recon.MethodAuto), result.Reconciled)
		logger.Info("auto-match job finished",
			slog.Int("examined", result.Examined),
			slog.Int("reconciled", result.Reconciled),
			slog.Float64("threshold", payload.Threshold))
		return tracker.End(nil)
	}
}
