package engine

import (
	"context"
	"log/slog"

	"github.com/virt-tools/engine-upload/internal/logger"
)

// Cancel asks the remote engine to abort the given transfers and delete the
// disks created for them. This is best-effort rollback running during unwind
// from an existing failure, so the helper's status is logged and discarded,
// never propagated.
func Cancel(runner Runner, params *Params, transferIDs []string, diskUUIDs []string) {
	p := *params
	p.TransferIDs = transferIDs
	p.DiskUUIDs = diskUUIDs

	slog.Info("Cancelling remote transfers", slog.Int("transfers", len(transferIDs)))

	err := runner.Run(context.Background(), CancelScript, &p)
	if err != nil {
		slog.Error("Failed to cancel transfers on the remote engine", logger.Err(err))
	}
}
