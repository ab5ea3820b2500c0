package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUserIdentifier(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"steamid64", "76561197960435530", "76561197960435530", false},
		{"steamid64 wrong prefix", "12345197960435530", "", true},
		{"steamid64 wrong length", "7656119796043553", "", true},
		{"vanity name", "gabelogannewell", "gabelogannewell", false},
		{"vanity too short", "a", "", true},
		{"vanity invalid chars", "not valid!", "", true},
		{"profile url vanity", "https://steamcommunity.com/id/gabelogannewell", "gabelogannewell", false},
		{"profile url vanity trailing slash", "https://steamcommunity.com/id/gabelogannewell/", "gabelogannewell", false},
		{"profile url steamid", "https://steamcommunity.com/profiles/76561197960435530", "76561197960435530", false},
		{"profile url steamid not numeric", "https://steamcommunity.com/profiles/gabelogannewell", "", true},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := normalizeUserIdentifier(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
