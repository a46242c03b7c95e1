// Package orderid generates and parses compact client order ids. The id
// encodes the owning strategy, the signal kind and the side, so that a
// cold-started instance can classify venue-reported open orders without
// any local metadata.
package orderid

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Kind is the signal kind encoded in an id.
type Kind byte

const (
	KindEntry      Kind = 'E'
	KindTakeProfit Kind = 'T'
)

const sep = "-"

// Generator produces unique compact ids. Now is injectable for tests;
// nil means time.Now.
type Generator struct {
	Now func() time.Time

	mu     sync.Mutex
	lastMs int64
	seq    int
}

// Next returns a fresh id: {strategyID}-{kind}{side}-{unixms}{seq}.
// sideBuy selects the B/S side code.
func (g *Generator) Next(strategyID string, kind Kind, sideBuy bool) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	ms := now().UnixMilli()
	if ms != g.lastMs {
		g.lastMs = ms
		g.seq = 0
	}
	g.seq++

	sideCode := "B"
	if !sideBuy {
		sideCode = "S"
	}
	return fmt.Sprintf("%s%s%c%s%s%d%03d", strategyID, sep, kind, sideCode, sep, ms, g.seq)
}

// Owns reports whether an id was generated for the given strategy.
func Owns(strategyID, clientOrderID string) bool {
	return strings.HasPrefix(clientOrderID, strategyID+sep)
}

// Parse extracts the strategy id, kind and side from an id.
func Parse(clientOrderID string) (strategyID string, kind Kind, sideBuy bool, ok bool) {
	parts := strings.Split(clientOrderID, sep)
	if len(parts) != 3 || len(parts[1]) != 2 {
		return "", 0, false, false
	}

	switch Kind(parts[1][0]) {
	case KindEntry:
		kind = KindEntry
	case KindTakeProfit:
		kind = KindTakeProfit
	default:
		return "", 0, false, false
	}

	switch parts[1][1] {
	case 'B':
		sideBuy = true
	case 'S':
		sideBuy = false
	default:
		return "", 0, false, false
	}

	return parts[0], kind, sideBuy, true
}
