package domain

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ContentFingerprint returns the fingerprint of raw bytes.
func ContentFingerprint(b []byte) string {
	return formatDigest(xxhash.Sum64(b))
}

func formatDigest(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

// digestWriter writes NUL separated fields into an xxhash digest.
type digestWriter struct {
	d *xxhash.Digest
}

func newDigestWriter() *digestWriter {
	return &digestWriter{d: xxhash.New()}
}

func (w *digestWriter) field(parts ...string) {
	for _, p := range parts {
		_, _ = w.d.WriteString(p)
		_, _ = w.d.Write([]byte{0})
	}
}

func (w *digestWriter) section() {
	_, _ = w.d.Write([]byte{0})
}

func (w *digestWriter) sum() string {
	return formatDigest(w.d.Sum64())
}
