package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Stat returns a fingerprint derived from file size and modification time.
// Image files are large, so change detection avoids hashing their content.
func Stat(size int64, modTime time.Time) string {
	h := sha256.New()
	h.Write(strconv.AppendInt(nil, size, 10))
	h.Write([]byte{0})
	h.Write(strconv.AppendInt(nil, modTime.UnixNano(), 10))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
