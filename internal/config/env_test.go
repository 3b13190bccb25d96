// SPDX-License-Identifier: MIT
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseString(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	assert.Equal(t, "value", ParseString("TEST_STR", "default"))
	assert.Equal(t, "default", ParseString("TEST_STR_ABSENT", "default"))

	t.Setenv("TEST_STR_EMPTY", "")
	assert.Equal(t, "default", ParseString("TEST_STR_EMPTY", "default"))
}

func TestParseInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	assert.Equal(t, 42, ParseInt("TEST_INT", 7))

	t.Setenv("TEST_INT_BAD", "forty-two")
	assert.Equal(t, 7, ParseInt("TEST_INT_BAD", 7))
	assert.Equal(t, 7, ParseInt("TEST_INT_ABSENT", 7))
}

func TestParseBool(t *testing.T) {
	for _, v := range []string{"true", "1", "yes", "TRUE", "Yes"} {
		t.Setenv("TEST_BOOL", v)
		assert.True(t, ParseBool("TEST_BOOL", false), v)
	}
	for _, v := range []string{"false", "0", "no"} {
		t.Setenv("TEST_BOOL", v)
		assert.False(t, ParseBool("TEST_BOOL", true), v)
	}
	t.Setenv("TEST_BOOL", "maybe")
	assert.True(t, ParseBool("TEST_BOOL", true))
}

func TestParseDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "550ms")
	assert.Equal(t, 550*time.Millisecond, ParseDuration("TEST_DUR", time.Second))

	t.Setenv("TEST_DUR_BAD", "soon")
	assert.Equal(t, time.Second, ParseDuration("TEST_DUR_BAD", time.Second))
}

func TestValidate(t *testing.T) {
	valid := AppConfig{
		ResoBaseURL:       "https://api.mls.test/odata",
		ResoToken:         "tok",
		OriginatingSystem: "actris",
		DatabaseURL:       "postgres://localhost/mls",
		MeiliHost:         "http://localhost:7700",
		MeiliIndex:        "listings",
		S3Bucket:          "b",
		S3AccessKey:       "a",
		S3SecretKey:       "s",
		CDNBaseURL:        "https://cdn.test",
		BatchSize:         100,
		SyncInterval:      5 * time.Minute,
	}
	assert.NoError(t, valid.Validate())

	broken := valid
	broken.ResoBaseURL = "not a url"
	assert.Error(t, broken.Validate())

	broken = valid
	broken.ResoToken = ""
	assert.Error(t, broken.Validate())

	broken = valid
	broken.BatchSize = 0
	assert.Error(t, broken.Validate())

	broken = valid
	broken.SyncInterval = time.Second
	assert.Error(t, broken.Validate())
}
