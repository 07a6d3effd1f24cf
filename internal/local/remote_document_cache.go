package local

import (
	"encoding/json"
	"fmt"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/local/persistence"
	"github.com/tonimelisma/firedoc/internal/model"
)

// RemoteDocumentCache is the server-confirmed document cache, keyed by
// DocumentKey with two secondary (read-time, key) orderings — one per
// concrete collection path, one per collection group — used for range
// scans during query execution and index backfill (spec §4.5).
type RemoteDocumentCache struct {
	tx persistence.Transaction
}

func newRemoteDocumentCache(tx persistence.Transaction) *RemoteDocumentCache {
	return &RemoteDocumentCache{tx: tx}
}

func marshalDocumentDTO(dto documentDTO) ([]byte, error) {
	raw, err := json.Marshal(dto)
	if err != nil {
		return nil, fmt.Errorf("local: marshal document: %w", err)
	}

	return raw, nil
}

func unmarshalDocument(raw []byte) (model.Document, error) {
	var dto documentDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return model.Document{}, fmt.Errorf("local: unmarshal document: %w", err)
	}

	return decodeDocument(dto)
}

// Add replaces the cached entry for doc.Key(), recording readTime in both
// secondary indexes. A prior entry's stale index rows are removed first.
func (c *RemoteDocumentCache) Add(doc model.Document, readTime model.SnapshotVersion) error {
	priorSize := 0

	if existing, ok, err := c.Get(doc.Key()); err != nil {
		return err
	} else if ok {
		if err := c.removeTimeIndexFor(existing); err != nil {
			return err
		}

		if existingDTO, err := encodeDocument(existing); err == nil {
			if raw, err := marshalDocumentDTO(existingDTO); err == nil {
				priorSize = len(raw)
			}
		}
	}

	dto, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("local: encode document: %w", err)
	}

	raw, err := marshalDocumentDTO(dto)
	if err != nil {
		return err
	}

	if err := c.tx.Put(remoteDocKey(doc.Key().String()), raw); err != nil {
		return err
	}

	collection := doc.Key().CollectionPath().String()
	group := doc.Key().CollectionGroup()
	keyStr := doc.Key().String()

	if err := c.tx.Put(remoteDocTimeKey(collection, readTime.Seconds, readTime.Nanos, keyStr), []byte{}); err != nil {
		return err
	}

	if err := c.tx.Put(remoteDocTimeGroupKey(group, readTime.Seconds, readTime.Nanos, keyStr), []byte{}); err != nil {
		return err
	}

	return c.adjustCacheSize(len(raw) - priorSize)
}

// CacheSizeBytes returns the running total of encoded-document bytes held
// in the cache, the size signal LRU garbage collection compares against
// its configured byte threshold (spec §3.4 supplemented LRU policy).
func (c *RemoteDocumentCache) CacheSizeBytes() (int64, error) {
	raw, ok, err := c.tx.Get(metaKey("cacheBytes"))
	if err != nil || !ok {
		return 0, err
	}

	var n int64
	if _, err := fmt.Sscanf(string(raw), "%d", &n); err != nil {
		return 0, fmt.Errorf("local: corrupt cache byte counter: %w", err)
	}

	return n, nil
}

func (c *RemoteDocumentCache) adjustCacheSize(delta int) error {
	current, err := c.CacheSizeBytes()
	if err != nil {
		return err
	}

	next := current + int64(delta)
	if next < 0 {
		next = 0
	}

	return c.tx.Put(metaKey("cacheBytes"), []byte(fmt.Sprintf("%d", next)))
}

func (c *RemoteDocumentCache) removeTimeIndexFor(doc model.Document) error {
	collection := doc.Key().CollectionPath().String()
	group := doc.Key().CollectionGroup()
	v := doc.Version()
	keyStr := doc.Key().String()

	if err := c.tx.Delete(remoteDocTimeKey(collection, v.Seconds, v.Nanos, keyStr)); err != nil {
		return err
	}

	return c.tx.Delete(remoteDocTimeGroupKey(group, v.Seconds, v.Nanos, keyStr))
}

// Remove deletes key's cache entry and its secondary index rows.
func (c *RemoteDocumentCache) Remove(key model.DocumentKey) error {
	existing, ok, err := c.Get(key)
	if err != nil {
		return err
	}

	if ok {
		if err := c.removeTimeIndexFor(existing); err != nil {
			return err
		}

		if existingDTO, err := encodeDocument(existing); err == nil {
			if raw, err := marshalDocumentDTO(existingDTO); err == nil {
				if err := c.adjustCacheSize(-len(raw)); err != nil {
					return err
				}
			}
		}
	}

	return c.tx.Delete(remoteDocKey(key.String()))
}

// Get returns key's cached document, or InvalidDocument if absent.
func (c *RemoteDocumentCache) Get(key model.DocumentKey) (model.Document, bool, error) {
	raw, ok, err := c.tx.Get(remoteDocKey(key.String()))
	if err != nil {
		return model.Document{}, false, err
	}

	if !ok {
		return model.InvalidDocument(key), false, nil
	}

	doc, err := unmarshalDocument(raw)
	if err != nil {
		return model.Document{}, false, err
	}

	return doc, true, nil
}

// GetAll is the batch form of Get; missing keys surface as InvalidDocument.
func (c *RemoteDocumentCache) GetAll(keys []model.DocumentKey) (map[string]model.Document, error) {
	out := make(map[string]model.Document, len(keys))

	for _, k := range keys {
		doc, _, err := c.Get(k)
		if err != nil {
			return nil, err
		}

		out[k.String()] = doc
	}

	return out, nil
}

// GetAllInCollectionGroup scans every document in collectionGroup with
// read-time at or past offset, up to limit documents, ordered by
// (read-time, key). Used by the index backfiller (spec §4.7).
func (c *RemoteDocumentCache) GetAllInCollectionGroup(collectionGroup string, offset IndexOffset, limit int) ([]model.Document, error) {
	prefix := remoteDocTimeGroupPrefix(collectionGroup)
	offsetKey := timeKey(offset.ReadTime.Seconds, offset.ReadTime.Nanos)

	var (
		out   []model.Document
		count int
	)

	err := c.tx.ScanPrefix(prefix, func(key, _ []byte) (bool, error) {
		if count >= limit {
			return false, nil
		}

		timekey, docKeyStr, ok := splitTimeIndexSuffix(key, prefix)
		if !ok || timekey < offsetKey {
			return true, nil
		}

		docKey, err := model.DocumentKeyFromString(docKeyStr)
		if err != nil {
			return false, fmt.Errorf("local: corrupt doc-time index entry: %w", err)
		}

		doc, found, err := c.Get(docKey)
		if err != nil {
			return false, err
		}

		if !found {
			return true, nil
		}

		out = append(out, doc)
		count++

		return true, nil
	})

	return out, err
}

// GetDocumentsMatchingQuery scans the collection path named by target,
// returning every cached document with read-time at or past offset, plus
// every key named in mutatedDocs regardless of its read-time (spec §4.5 —
// mutatedDocs forces inclusion of documents with pending mutations).
func (c *RemoteDocumentCache) GetDocumentsMatchingQuery(target core.Target, offset model.SnapshotVersion, mutatedDocs map[string]bool) (map[string]model.Document, error) {
	collection := target.CollectionPath.String()
	prefix := remoteDocTimeCollectionPrefix(collection)
	offsetKey := timeKey(offset.Seconds, offset.Nanos)

	out := make(map[string]model.Document)

	err := c.tx.ScanPrefix(prefix, func(key, _ []byte) (bool, error) {
		timekey, docKeyStr, ok := splitTimeIndexSuffix(key, prefix)
		if !ok || timekey < offsetKey {
			return true, nil
		}

		docKey, err := model.DocumentKeyFromString(docKeyStr)
		if err != nil {
			return false, fmt.Errorf("local: corrupt doc-time index entry: %w", err)
		}

		doc, found, err := c.Get(docKey)
		if err != nil {
			return false, err
		}

		if found {
			out[docKey.String()] = doc
		}

		return true, nil
	})
	if err != nil {
		return nil, err
	}

	for key := range mutatedDocs {
		if _, already := out[key]; already {
			continue
		}

		docKey, err := model.DocumentKeyFromString(key)
		if err != nil {
			continue
		}

		doc, found, err := c.Get(docKey)
		if err != nil {
			return nil, err
		}

		if found {
			out[key] = doc
		}
	}

	return out, nil
}
