package worker

import (
	"context"
	"time"
)

// RunOnce is exported for testing the rollover cycle deterministically.
func (x *Rollover) RunOnce(ctx context.Context, now time.Time) error {
	return x.runOnce(ctx, now)
}
