package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowedIP(t *testing.T) {
	blocks := []string{"203.0.113.0/24", "2001:db8::/32", "not-a-cidr"}

	assert.True(t, IsAllowedIP("203.0.113.7", blocks))
	assert.True(t, IsAllowedIP("2001:db8::1", blocks))
	assert.False(t, IsAllowedIP("198.51.100.1", blocks))
	assert.False(t, IsAllowedIP("garbage", blocks))
	assert.False(t, IsAllowedIP("203.0.113.7", nil))
}
