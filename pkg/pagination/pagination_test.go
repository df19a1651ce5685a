package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 1, DefaultLimit, 0},
		{"explicit", "page=3&limit=10", 3, 10, 20},
		{"garbage falls back", "page=abc&limit=xyz", 1, DefaultLimit, 0},
		{"non-positive falls back", "page=0&limit=-5", 1, DefaultLimit, 0},
		{"limit capped", "page=2&limit=5000", 2, MaxLimit, MaxLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/?"+tt.query, nil)

			p := Parse(c)
			if p.Page != tt.wantPage || p.Limit != tt.wantLimit {
				t.Errorf("Parse(%q) = {Page:%d Limit:%d}, want {Page:%d Limit:%d}",
					tt.query, p.Page, p.Limit, tt.wantPage, tt.wantLimit)
			}
			if got := p.Offset(); got != tt.wantOffset {
				t.Errorf("Offset() = %d, want %d", got, tt.wantOffset)
			}
		})
	}
}
