package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmail(t *testing.T) {
	assert.True(t, isEmail("ada@x.com"))
	assert.True(t, isEmail("first.last+tag@sub.example.org"))
	assert.False(t, isEmail("ada@x"))
	assert.False(t, isEmail("ada x@x.com"))
	assert.False(t, isEmail(""))
}

func TestIsPhoneNumber(t *testing.T) {
	tests := map[string]bool{
		"03001234567":   true,
		"+923001234567": true,
		"0300123456":    false,
		"+92300123456":  false,
		"04001234567":   false,
		"+913001234567": false,
		"03001234567 ":  false,
	}
	for in, want := range tests {
		assert.Equal(t, want, isPhoneNumber(in), in)
	}
}

func TestIsStrongPassword(t *testing.T) {
	assert.True(t, isStrongPassword("Passw0rd1"))
	assert.True(t, isStrongPassword("abcdefg1"))
	assert.False(t, isStrongPassword("abc1"))
	assert.False(t, isStrongPassword("abcdefgh"))
	assert.False(t, isStrongPassword("12345678"))
	assert.True(t, isStrongPassword(strings.Repeat("a", 71)+"1"))
	assert.False(t, isStrongPassword(strings.Repeat("a", 72)+"1"))
}
