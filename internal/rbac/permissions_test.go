package rbac

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var permissionSetKeys = []string{
	"create", "read", "update", "delete",
	"create_task", "read_task", "update_task", "delete_task",
}

func decodeSet(t *testing.T, set PermissionSet) map[string]interface{} {
	t.Helper()
	b, err := json.Marshal(set)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestPermissionSetAlwaysHasEightBooleans(t *testing.T) {
	for _, set := range []PermissionSet{{}, AllGranted(), {Read: true}} {
		out := decodeSet(t, set)
		assert.Len(t, out, 8)
		for _, key := range permissionSetKeys {
			_, isBool := out[key].(bool)
			assert.True(t, isBool, key)
		}
	}
}

func TestFrontendPermissions(t *testing.T) {
	names := FrontendPermissions()
	assert.Len(t, names, 8)
	for _, n := range names {
		assert.True(t, IsKnownPermission(n), n)
	}
	assert.False(t, IsKnownPermission("launch missiles"))
}

func TestCatalog(t *testing.T) {
	assert.Len(t, Catalog, 14)
	for _, p := range DefaultUserPermissions {
		assert.True(t, IsKnownPermission(p), p)
	}
}

func TestAny(t *testing.T) {
	assert.False(t, PermissionSet{}.Any())
	assert.True(t, PermissionSet{DeleteTask: true}.Any())
}
