package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolSizeWarning(t *testing.T) {
	cases := []struct {
		name           string
		poolMax        int32
		collect        int
		apiParallelism int
		wantOK         bool
		wantRequired   int32
	}{
		{"sufficient pool, api dominates", 30, 10, 20, true, 20},
		{"sufficient pool, collect dominates", 30, 29, 5, true, 30},
		{"undersized pool", 10, 20, 5, false, 21},
		{"exact minimum", 21, 20, 5, true, 21},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Config{DBPoolMax: tc.poolMax, CollectConcurrency: tc.collect}
			ok, required := cfg.PoolSizeWarning(tc.apiParallelism)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantRequired, required)
		})
	}
}

func TestLoadDefaultsInsecureSecretWarning(t *testing.T) {
	t.Setenv("TOKEN_SIGNING_SECRET", "")

	cfg, warnings, err := Load()
	require.NoError(t, err)
	assert.Equal(t, insecureDefaultSecret, cfg.TokenSigningSecret)
	assert.Len(t, warnings, 1)
}

func TestClientsParsesJSON(t *testing.T) {
	cfg := Config{ClientsJSON: `{"desktop-main":"sekret"}`}
	clients, err := cfg.Clients()
	require.NoError(t, err)
	assert.Equal(t, "sekret", clients["desktop-main"])
}
