package backend

import (
	"context"
	"fmt"
)

func init() {
	Register("coreml", func() Backend { return stubBackend{name: "coreml", bridge: "CoreML native bridge"} })
	Register("nnapi", func() Backend { return stubBackend{name: "nnapi", bridge: "NNAPI / ML Kit native bridge"} })
}

// stubBackend is a placeholder for hardware backends that need a native
// bridge not linked into this build. Selecting one fails loudly instead of
// silently falling back to CPU.
type stubBackend struct {
	name   string
	bridge string
}

func (b stubBackend) Name() string { return b.name }

func (b stubBackend) Available() bool { return false }

func (b stubBackend) Open(_ context.Context, _ Spec) (Session, error) {
	return nil, fmt.Errorf("%s backend: %w (requires the %s)", b.name, ErrBackendUnavailable, b.bridge)
}
