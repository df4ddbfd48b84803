package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"photo.png", "photo.png"},
		{"Café déjà vu.jpg", "Cafe_deja_vu.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\shot 1.png`, "shot_1.png"},
		{"日本.png", "__.png"},
		{"...", "image"},
		{"", "image"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "Cafe_photo_nobg.png", OutputName("/in/Café photo.jpg", "_nobg"))
	assert.Equal(t, "scan.png", OutputName("scan.webp", ""))
	assert.Equal(t, "a.b_nobg.png", OutputName("dir/a.b.jpeg", "_nobg"))
}
