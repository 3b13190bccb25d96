// SPDX-License-Identifier: MIT
package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testBucket() *Bucket {
	return &Bucket{
		bucket:  "listings",
		cdnBase: "https://cdn.example.com",
		prefix:  "production",
		system:  "actris",
	}
}

func TestKeyNamespace(t *testing.T) {
	b := testBucket()

	assert.Equal(t, "production/actris/L123/0.jpg", b.Key("L123", 0, "image/jpeg"))
	assert.Equal(t, "production/actris/L123/7.png", b.Key("L123", 7, "image/png"))
	assert.Equal(t, "production/actris/L123/", b.ListingPrefix("L123"))
	assert.Equal(t, "production/actris/", b.RootPrefix())
	assert.Equal(t, "https://cdn.example.com/production/actris/L123/0.jpg",
		b.URL(b.Key("L123", 0, "image/jpeg")))
}

func TestExtForContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", "jpg"},
		{"image/png", "png"},
		{"image/gif", "gif"},
		{"image/webp", "webp"},
		{"image/png; charset=binary", "png"},
		{"IMAGE/PNG", "png"},
		{"application/octet-stream", "jpg"},
		{"", "jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extForContentType(tt.contentType), tt.contentType)
	}
}
