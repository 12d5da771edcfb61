package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// NewSignalID derives a stable signal identity from its dedup dimensions
// (source + symbol + transaction_date + filer), so re-ingesting the same
// raw record always yields the same id. The dedup gate itself does a
// separate lookup on Signal.DedupKey before insert.
func NewSignalID(source SignalSource, symbol string, transactionDate time.Time, filerName string) string {
	h := sha256.New()
	h.Write([]byte(string(source)))
	h.Write([]byte{0})
	h.Write([]byte(symbol))
	h.Write([]byte{0})
	h.Write([]byte(transactionDate.Format("2006-01-02")))
	h.Write([]byte{0})
	h.Write([]byte(filerName))
	return "sig_" + hex.EncodeToString(h.Sum(nil))[:24]
}

// NewID generates an opaque random identity for entities with no natural
// key (orders, positions, cycles).
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
