package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsExempt(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/auth/login", true},
		{"/health", true},
		{"/docs", true},
		{"/redoc", true},
		{"/openapi.json", true},
		{"/api/games", false},
		{"/games", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isExempt(tc.path), "isExempt(%q)", tc.path)
	}
}

func TestRequiresSignature(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/api/games", true},
		{"/api/", true},
		{"/auth/login", false},
		{"/health", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, requiresSignature(tc.path), "requiresSignature(%q)", tc.path)
	}
}
