package local

import (
	"encoding/binary"
	"fmt"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
)

// TargetCache persists TargetData by TargetId and by the target's canonical
// id (spec §6 "target metadata (by target-id; by canonical-id)"). It holds
// no counter itself: HighestTargetID supplies the largest persisted
// TargetId, from which LocalStore seeds its monotonic TargetId counter
// (spec §4.2.2).
type TargetCache struct {
	tx persistence.Transaction
}

func newTargetCache(tx persistence.Transaction) *TargetCache {
	return &TargetCache{tx: tx}
}

// Get returns the persisted TargetData for id, if any.
func (c *TargetCache) Get(id int32) (core.TargetData, bool, error) {
	raw, ok, err := c.tx.Get(targetByIDKey(id))
	if err != nil || !ok {
		return core.TargetData{}, false, err
	}

	td, err := decodeTargetData(raw)
	if err != nil {
		return core.TargetData{}, false, err
	}

	return td, true, nil
}

// GetByCanonicalID returns the persisted TargetData whose target shares
// canonicalID's identity, if any — used by AllocateTarget to find an
// existing listen (and its resume token) for an equal target.
func (c *TargetCache) GetByCanonicalID(canonicalID string) (core.TargetData, bool, error) {
	raw, ok, err := c.tx.Get(targetByCanonicalKey(canonicalID))
	if err != nil || !ok {
		return core.TargetData{}, false, err
	}

	var id int32
	if err := bytesToInt32(raw, &id); err != nil {
		return core.TargetData{}, false, err
	}

	return c.Get(id)
}

// Save persists td under both its TargetId and its target's canonical id.
func (c *TargetCache) Save(td core.TargetData) error {
	raw, err := encodeTargetData(td)
	if err != nil {
		return fmt.Errorf("local: encode target data: %w", err)
	}

	if err := c.tx.Put(targetByIDKey(td.TargetID), raw); err != nil {
		return err
	}

	idBuf := int32ToBytes(td.TargetID)

	return c.tx.Put(targetByCanonicalKey(td.Target.CanonicalID()), idBuf)
}

// Remove deletes td's metadata from both index spaces.
func (c *TargetCache) Remove(td core.TargetData) error {
	if err := c.tx.Delete(targetByIDKey(td.TargetID)); err != nil {
		return err
	}

	return c.tx.Delete(targetByCanonicalKey(td.Target.CanonicalID()))
}

// HighestTargetID scans every persisted TargetData and returns the largest
// TargetId seen, or 0 if none exist — the seed for LocalStore's in-memory
// counter at startup (spec §4.2.2).
func (c *TargetCache) HighestTargetID() (int32, error) {
	var highest int32

	err := c.tx.ScanPrefix([]byte(prefixTargetByID), func(_, value []byte) (bool, error) {
		td, err := decodeTargetData(value)
		if err != nil {
			return false, err
		}

		if td.TargetID > highest {
			highest = td.TargetID
		}

		return true, nil
	})

	return highest, err
}

func int32ToBytes(v int32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(v))

	return buf
}

func bytesToInt32(raw []byte, out *int32) error {
	if len(raw) != 4 {
		return fmt.Errorf("local: corrupt target id reference (%d bytes)", len(raw))
	}

	*out = int32(binary.BigEndian.Uint32(raw))

	return nil
}
