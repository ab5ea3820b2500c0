package auth

import "fmt"

// RateLimitKey derives a stable per-caller key: client:<id> when a bearer
// token verified successfully, otherwise ip:<peer-address>, per spec §4.3.
func RateLimitKey(clientID, peerAddr string) string {
	if clientID != "" {
		return fmt.Sprintf("client:%s", clientID)
	}
	return fmt.Sprintf("ip:%s", peerAddr)
}
