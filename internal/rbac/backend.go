package rbac

import (
	"context"
	"fmt"
	"log/slog"
)

// Backend is the process-wide permission capability, fixed at startup.
type Backend string

const (
	// BackendFull answers permission checks through the policy enforcer.
	BackendFull Backend = "full"
	// BackendFallback has the role tables but no enforcer; roles carry raw permission data.
	BackendFallback Backend = "fallback"
	// BackendNone has no RBAC tables; only the user's stored role name is available.
	BackendNone Backend = "none"
)

// Mode values accepted by DetectBackend in addition to the Backend names.
const ModeAuto = "auto"

// DetectBackend turns the configured mode into a Backend. In auto mode the
// schema and enforcer decide; an explicit mode is honoured but downgraded
// when its requirements are not met.
func DetectBackend(ctx context.Context, mode string, prober *SchemaProber, enforcer *Enforcer, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	present := prober.Present(ctx)
	detected := BackendNone
	switch {
	case present && enforcer != nil:
		detected = BackendFull
	case present:
		detected = BackendFallback
	}

	var backend Backend
	switch mode {
	case "", ModeAuto:
		backend = detected
	case string(BackendFull):
		backend = BackendFull
		if detected != BackendFull {
			logger.Warn("RBAC backend 'full' requested but unavailable, degrading", "detected", detected)
			backend = detected
		}
	case string(BackendFallback):
		backend = BackendFallback
		if !present {
			logger.Warn("RBAC backend 'fallback' requested but schema is absent, degrading")
			backend = BackendNone
		}
	case string(BackendNone):
		backend = BackendNone
	default:
		return "", fmt.Errorf("unknown rbac backend mode: %s", mode)
	}

	logger.Info("RBAC backend selected", "mode", mode, "backend", backend, "schema_present", present)
	return backend, nil
}
