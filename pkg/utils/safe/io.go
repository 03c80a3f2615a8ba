package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/seiyo-lab/kaoban/pkg/utils/logging"
)

// Close closes an io.Closer, logging instead of returning the error. Used
// in defers where the caller has no error path left. Nil closers are a
// no-op.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}
