package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func parseQuery(query string, defaultLimit int) Params {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/api/tasks?"+query, nil)
	return Parse(c, defaultLimit)
}

func TestParse(t *testing.T) {
	tests := []struct {
		query        string
		defaultLimit int
		want         Params
	}{
		{"", 50, Params{Page: 1, Limit: 50, Offset: 0}},
		{"page=3&per_page=10", 50, Params{Page: 3, Limit: 10, Offset: 20}},
		{"page=2&limit=5", 10, Params{Page: 2, Limit: 5, Offset: 5}},
		{"per_page=500", 10, Params{Page: 1, Limit: MaxLimit, Offset: 0}},
		{"page=-1&per_page=abc", 10, Params{Page: 1, Limit: 10, Offset: 0}},
		{"per_page=0", 0, Params{Page: 1, Limit: DefaultLimit, Offset: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, parseQuery(tt.query, tt.defaultLimit))
		})
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage([]string{"a", "b"}, New(2, 2), 5)
	assert.Equal(t, 3, p.LastPage)
	assert.Equal(t, 2, p.CurrentPage)

	empty := NewPage[string](nil, New(1, 10), 0)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 1, empty.LastPage)
}
