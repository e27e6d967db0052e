package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns the SHA-256 hex digest of data. Snapshot content signatures
// and file cache paths are built from it.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// optionsDigestLen is the number of hex digits of the options digest kept
// in a rollup key.
const optionsDigestLen = 16

// rollupKey returns "rollup:<kind>:<signature>:<options digest>". The
// subgraph signature is already a content hash, so only the options are
// hashed again.
func rollupKey(kind, signature string, opts any) string {
	data, err := json.Marshal(opts)
	if err != nil {
		data = []byte(err.Error())
	}
	return "rollup:" + kind + ":" + signature + ":" + Hash(data)[:optionsDigestLen]
}
