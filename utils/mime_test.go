package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSafeExtension(t *testing.T) {
	tests := []struct {
		mimeType string
		expected string
	}{
		{"image/jpeg", ".jpg"},
		{"image/png", ".png"},
		{"image/gif", ".gif"},
		{"image/webp", ".webp"},
		{"image/bmp", ".bmp"},
		{"image/png; charset=binary", ".png"},
		{"text/plain; charset=utf-8", ""},
		{"application/pdf", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetSafeExtension(tt.mimeType))
		})
	}
}

func TestContentTypeFromPath(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeFromPath("original/2026/01/01/abc.jpg"))
	assert.Equal(t, "image/jpeg", ContentTypeFromPath("legacy/photo.JPEG"))
	assert.Equal(t, "image/png", ContentTypeFromPath("original/2026/01/01/abc.png"))
	assert.Equal(t, "application/octet-stream", ContentTypeFromPath("notes.txt"))
	assert.Equal(t, "application/octet-stream", ContentTypeFromPath(""))
}
