package events

import (
	"strconv"

	"github.com/google/uuid"

	"nhbchain/crypto"
)

// newEventID mints a fresh random ID for one emitted event. Downstream
// subscribers (an indexer, an RPC event stream) can use it to de-duplicate a
// re-delivered event; each call returns a different ID, so it does not link
// separate events together.
func newEventID() string {
	return uuid.New().String()
}

func formatLamports(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatEpoch(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatAddress(a crypto.Address) string {
	return a.String()
}
