package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		want      []string
	}{
		{name: "short text", text: "hello", chunkSize: 10, overlap: 2, want: []string{"hello"}},
		{name: "exact chunks", text: "abcdef", chunkSize: 3, overlap: 0, want: []string{"abc", "def"}},
		{name: "overlap", text: "abcdef", chunkSize: 4, overlap: 2, want: []string{"abcd", "cdef"}},
		{name: "multibyte runes", text: "ééééé", chunkSize: 5, overlap: 0, want: []string{"ééééé"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitText(tt.text, tt.chunkSize, tt.overlap))
		})
	}
}

func TestSplitPages(t *testing.T) {
	text := "page one\f\f  page two  \f" + strings.Repeat("x", 25)
	pages := SplitPages(text, 10)

	assert.Equal(t, []string{"page one", "page two", strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, pages)
}
