package auth

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignRequestDeterministic(t *testing.T) {
	a := SignRequest("sec", "POST", "/auth/login", []byte(`{"client_id":"cli"}`), "1700000000", "N1")
	b := SignRequest("sec", "POST", "/auth/login", []byte(`{"client_id":"cli"}`), "1700000000", "N1")
	assert.Equal(t, a, b)
}

func TestSignRequestSensitiveToEachCoordinate(t *testing.T) {
	base := SignRequest("sec", "POST", "/auth/login", []byte("body"), "1700000000", "N1")

	variants := map[string]string{
		"method":    SignRequest("sec", "GET", "/auth/login", []byte("body"), "1700000000", "N1"),
		"path":      SignRequest("sec", "POST", "/auth/other", []byte("body"), "1700000000", "N1"),
		"body":      SignRequest("sec", "POST", "/auth/login", []byte("other"), "1700000000", "N1"),
		"timestamp": SignRequest("sec", "POST", "/auth/login", []byte("body"), "1700000001", "N1"),
		"nonce":     SignRequest("sec", "POST", "/auth/login", []byte("body"), "1700000000", "N2"),
		"secret":    SignRequest("other", "POST", "/auth/login", []byte("body"), "1700000000", "N1"),
	}

	for name, v := range variants {
		assert.NotEqualf(t, base, v, "changing %s did not change the signature", name)
	}
}

func TestVerifyRequestHappyPath(t *testing.T) {
	clients := map[string]string{"cli": "sec"}
	nonces := NewNonceCache(100, 5*time.Minute)
	signer := NewSigner(clients, 60*time.Second, nonces)

	body := []byte(`{"client_id":"cli"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := SignRequest("sec", "POST", "/auth/login", body, ts, "N1")

	clientID, err := signer.VerifyRequest("POST", "/auth/login", body, "cli", ts, "N1", sig)
	require.NoError(t, err)
	assert.Equal(t, "cli", clientID)
}

func TestVerifyRequestReplayRejected(t *testing.T) {
	clients := map[string]string{"cli": "sec"}
	nonces := NewNonceCache(100, 5*time.Minute)
	signer := NewSigner(clients, 60*time.Second, nonces)

	body := []byte(`{"client_id":"cli"}`)
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := SignRequest("sec", "POST", "/auth/login", body, ts, "N1")

	_, err := signer.VerifyRequest("POST", "/auth/login", body, "cli", ts, "N1", sig)
	require.NoError(t, err)

	_, err = signer.VerifyRequest("POST", "/auth/login", body, "cli", ts, "N1", sig)
	assert.ErrorIs(t, err, ErrReplayedNonce)
}

func TestVerifyRequestUnknownClient(t *testing.T) {
	clients := map[string]string{"cli": "sec"}
	nonces := NewNonceCache(100, 5*time.Minute)
	signer := NewSigner(clients, 60*time.Second, nonces)

	body := []byte(`{}`)
	now := strconv.FormatInt(time.Now().Unix(), 10)
	sig := SignRequest("whatever", "POST", "/api/games", body, now, "N1")

	_, err := signer.VerifyRequest("POST", "/api/games", body, "unknown", now, "N1", sig)
	assert.ErrorIs(t, err, ErrUnknownClient)
}

func TestVerifyRequestStaleTimestamp(t *testing.T) {
	clients := map[string]string{"cli": "sec"}
	nonces := NewNonceCache(100, 5*time.Minute)
	signer := NewSigner(clients, 60*time.Second, nonces)

	body := []byte(`{}`)
	stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
	sig := SignRequest("sec", "POST", "/api/games", body, stale, "N1")

	_, err := signer.VerifyRequest("POST", "/api/games", body, "cli", stale, "N1", sig)
	assert.ErrorIs(t, err, ErrStaleTimestamp)
}
