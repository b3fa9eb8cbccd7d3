package response

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope(t *testing.T) {
	b, err := json.Marshal(Success(http.StatusOK, map[string]int{"n": 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","status_code":200,"data":{"n":1}}`, string(b))

	b, err = json.Marshal(Error(http.StatusForbidden, "nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","status_code":403,"error":"nope"}`, string(b))

	b, err = json.Marshal(ValidationError(http.StatusUnprocessableEntity, "invalid", map[string][]string{"name": {"required"}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","status_code":422,"error":"invalid","errors":{"name":["required"]}}`, string(b))
}
