package util

import (
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
)

// Digest hashes the given parts, in order, into a hex BLAKE2b-256 string.
func Digest(parts ...string) string {
	h, err := blake2b.New(32, nil)
	if err != nil {
		panic(err)
	}
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ChunkChecksum identifies a chunk's content as embedded by a given model.
func ChunkChecksum(content, model string) string {
	return Digest(content, "\x00", model)
}
