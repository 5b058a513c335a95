package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	assert.Equal(t, "v1.2.0", Info{Version: "v1.2.0", Commit: "none"}.Short())
	assert.Equal(t, "v1.2.0 (abcdef1)", Info{Version: "v1.2.0", Commit: "abcdef1234"}.Short())
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.String(), "Platform:")
}
