// Package util holds small helpers shared across the service.
package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier like "brd_9f2c…". The prefix marks the
// entity kind in logs and payloads; an empty prefix yields bare hex.
func NewID(prefix string) string {
	id := randomHex(16)
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// NewLinkToken returns an opaque token for public share links. Wider than
// NewID because link tokens are bearer capabilities.
func NewLinkToken() string {
	return randomHex(24)
}

func randomHex(n int) string {
	bytes := make([]byte, n)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
