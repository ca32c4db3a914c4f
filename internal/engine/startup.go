package engine

import (
	"context"
	"fmt"
)

// EnsureReady checks that the Engine is reachable and the search model is
// available.
func EnsureReady(ctx context.Context, e Engine, model string) error {
	if !e.IsRunning(ctx) {
		return fmt.Errorf("%s backend is not reachable", e.Name())
	}
	if model != "" && !e.HasModel(ctx, model) {
		return fmt.Errorf("model %s is not available on %s", model, e.Name())
	}
	return nil
}
