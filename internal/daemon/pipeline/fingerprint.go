package pipeline

import (
	"encoding/hex"

	"github.com/grovetools/peersync/pkg/models"
	"lukechampine.com/blake3"
)

// Fingerprint returns a stable digest of a pass's entries and payload. Two
// passes with the same handles and payload share a fingerprint regardless of
// when the signals arrived.
func Fingerprint(entries []models.ChangeSignal, data []byte) string {
	h := blake3.New(32, nil)
	for _, e := range entries {
		h.Write([]byte(e.Kind.String()))
		h.Write([]byte{0})
		h.Write([]byte(e.Handle))
		h.Write([]byte{0})
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
