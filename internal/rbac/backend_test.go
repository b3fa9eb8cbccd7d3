package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectBackend(t *testing.T) {
	withSchemaDB := newTestDB(t, true)
	withoutSchemaDB := newTestDB(t, false)

	enforcer, err := NewEnforcer(withSchemaDB, discardLogger)
	require.NoError(t, err)

	present := NewSchemaProber(withSchemaDB, 0, discardLogger)
	absent := NewSchemaProber(withoutSchemaDB, 0, discardLogger)

	tests := []struct {
		name     string
		mode     string
		prober   *SchemaProber
		enforcer *Enforcer
		want     Backend
	}{
		{"auto with schema and enforcer", ModeAuto, present, enforcer, BackendFull},
		{"auto with schema only", ModeAuto, present, nil, BackendFallback},
		{"auto without schema", "", absent, enforcer, BackendNone},
		{"full honoured", "full", present, enforcer, BackendFull},
		{"full degraded to fallback", "full", present, nil, BackendFallback},
		{"full degraded to none", "full", absent, nil, BackendNone},
		{"fallback with enforcer available", "fallback", present, enforcer, BackendFallback},
		{"fallback degraded", "fallback", absent, nil, BackendNone},
		{"none forced", "none", present, enforcer, BackendNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectBackend(context.Background(), tt.mode, tt.prober, tt.enforcer, discardLogger)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = DetectBackend(context.Background(), "spatie", present, enforcer, discardLogger)
	assert.Error(t, err)
}
