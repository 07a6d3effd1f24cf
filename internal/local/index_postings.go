package local

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

// internDocID returns a stable, compact uint32 identifier for key, assigning
// a fresh one off a persisted counter the first time key is seen. Roaring
// bitmaps operate over a uint32 universe; document keys are arbitrary-length
// strings, so equality postings are built over these interned ids rather
// than the keys themselves.
func internDocID(tx persistence.Transaction, key string) (uint32, error) {
	if raw, ok, err := tx.Get(docIDKey(key)); err != nil {
		return 0, err
	} else if ok {
		return binary.BigEndian.Uint32(raw), nil
	}

	raw, ok, err := tx.Get(metaKey("nextDocID"))
	if err != nil {
		return 0, err
	}

	var next uint32
	if ok {
		next = binary.BigEndian.Uint32(raw)
	}

	idBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(idBuf, next)

	if err := tx.Put(docIDKey(key), idBuf); err != nil {
		return 0, err
	}

	if err := tx.Put(idDocKey(next), []byte(key)); err != nil {
		return 0, err
	}

	nextBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(nextBuf, next+1)

	if err := tx.Put(metaKey("nextDocID"), nextBuf); err != nil {
		return 0, err
	}

	return next, nil
}

func resolveDocID(tx persistence.Transaction, id uint32) (string, bool, error) {
	raw, ok, err := tx.Get(idDocKey(id))
	if err != nil || !ok {
		return "", false, err
	}

	return string(raw), true, nil
}

func loadPosting(tx persistence.Transaction, indexID string, segPos int, token string) (*roaring.Bitmap, error) {
	raw, ok, err := tx.Get(postingKey(indexID, segPos, token))
	if err != nil {
		return nil, err
	}

	bm := roaring.New()
	if !ok {
		return bm, nil
	}

	if err := bm.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("local: corrupt posting list %s/%d/%s: %w", indexID, segPos, token, err)
	}

	return bm, nil
}

func savePosting(tx persistence.Transaction, indexID string, segPos int, token string, bm *roaring.Bitmap) error {
	raw, err := bm.MarshalBinary()
	if err != nil {
		return err
	}

	return tx.Put(postingKey(indexID, segPos, token), raw)
}

// equalityToken renders v as a deterministic token suitable for keying an
// equality posting list: two values that compare Equal (spec §3 Value
// equality) render the same token, reusing codec.go's value DTO so the
// encoding stays in one place.
func equalityToken(v model.Value) (string, error) {
	dto, err := encodeValue(v)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(dto)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}
