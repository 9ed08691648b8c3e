// Package integrity computes the hash chain that makes the event journal
// tamper-evident. Each event carries a content hash; chain hashes link each
// event to its predecessor so a rewritten or dropped event breaks every
// hash after it.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/haldane-games/crucible/internal/storage"
)

// hashEnvelope fixes the field set and ordering the content hash covers.
// Changing it invalidates every stored chain, so it only grows.
type hashEnvelope struct {
	MatchID           string          `json:"matchId"`
	Seq               int64           `json:"seq"`
	Type              string          `json:"type"`
	Payload           json.RawMessage `json:"payload,omitempty"`
	TimestampMillis   int64           `json:"timestampMillis"`
	SourceCommandType string          `json:"sourceCommandType,omitempty"`
}

// EventHash computes the content hash for one journaled event.
func EventHash(evt storage.ArchivedEvent) (string, error) {
	envelope := hashEnvelope{
		MatchID:           evt.MatchID,
		Seq:               evt.Seq,
		Type:              evt.Type,
		Payload:           json.RawMessage(evt.Payload),
		TimestampMillis:   evt.Timestamp.UTC().UnixMilli(),
		SourceCommandType: evt.SourceCommandType,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("marshal hash envelope: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ChainHash links an event's content hash to its predecessor's chain hash.
// The first event of a match chains from the empty string.
func ChainHash(eventHash, prevChainHash string) string {
	sum := sha256.Sum256([]byte(prevChainHash + ":" + eventHash))
	return hex.EncodeToString(sum[:])
}

// VerifyChain walks a contiguous slice of journaled events and reports the
// first seq whose hashes do not line up, or zero when the chain holds.
// prevChainHash is the chain hash of the event just before the slice, empty
// when the slice starts at the beginning of the journal.
func VerifyChain(events []storage.ArchivedEvent, prevChainHash string) (int64, error) {
	prev := prevChainHash
	for _, evt := range events {
		hash, err := EventHash(evt)
		if err != nil {
			return evt.Seq, err
		}
		if hash != evt.Hash {
			return evt.Seq, nil
		}
		if evt.PrevHash != prev {
			return evt.Seq, nil
		}
		if ChainHash(hash, prev) != evt.ChainHash {
			return evt.Seq, nil
		}
		prev = evt.ChainHash
	}
	return 0, nil
}
