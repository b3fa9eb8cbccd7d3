package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"taskhub/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"attachments/a.pdf", "attachments/a.pdf", false},
		{"/attachments/a.pdf", "attachments/a.pdf", false},
		{`exports\tasks.csv`, "exports/tasks.csv", false},
		{"", "", true},
		{"../etc/passwd", "", true},
		{"attachments/../../x", "", true},
		{"attachments//a.pdf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := CleanKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	ok, err := st.Exists(ctx, "attachments/a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Put(ctx, "attachments/a.pdf", strings.NewReader("%PDF-1.4"), "application/pdf"))

	ok, err = st.Exists(ctx, "attachments/a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := st.Open(ctx, "attachments/a.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))

	require.NoError(t, st.Delete(ctx, "attachments/a.pdf"))
	require.NoError(t, st.Delete(ctx, "attachments/a.pdf"))

	_, err = st.Open(ctx, "attachments/a.pdf")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	err = st.Put(context.Background(), "../outside.txt", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}
