package retrieval

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelativeImagePath(t *testing.T) {
	absRoot, err := filepath.Abs("static/images")
	assert.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"relative to root", "s1/page_1.png", "s1/page_1.png", true},
		{"prefixed with root", "static/images/s1/page_1.png", "s1/page_1.png", true},
		{"absolute under root", filepath.Join(absRoot, "s1", "page_2.png"), "s1/page_2.png", true},
		{"absolute outside root", "/etc/passwd", "", false},
		{"escaping", "../secrets.png", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RelativeImagePath("static/images", tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, filepath.FromSlash(tt.want), got)
		})
	}
}
