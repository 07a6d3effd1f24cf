package local

import "fmt"

// Key encoding for the flat persistence.Transaction keyspace. Each logical
// key space from spec §6 gets a distinct prefix; within a space, zero-padded
// decimal integers keep numeric fields in byte-lexicographic order so
// ScanPrefix/ScanRange iterate in the numeric order the spec requires
// (BatchId ascending, read-time ascending, and so on).

const (
	prefixMutation         = "mut/"      // mut/<user>/<batchid>
	prefixRemoteDoc        = "doc/"      // doc/<key>
	prefixRemoteDocTime    = "doctime/"  // doctime/<collection>/<timekey>/<key>
	prefixRemoteDocTimeGrp = "doctimeg/" // doctimeg/<collectiongroup>/<timekey>/<key>
	prefixOverlay          = "ovl/"      // ovl/<user>/<key>
	prefixOverlayColl      = "ovlcoll/"  // ovlcoll/<collection>/<batchid>/<key>
	prefixOverlayGroup     = "ovlgrp/"   // ovlgrp/<collectiongroup>/<batchid>/<key>
	prefixTargetByID       = "target/"   // target/<targetid>
	prefixTargetByCanon    = "tgtcan/"   // tgtcan/<canonicalid>
	prefixCollParent       = "collp/"    // collp/<collectionid>/<parentpath>
	prefixFieldIndex       = "fidx/"     // fidx/<collectiongroup>/<indexid>
	prefixMeta             = "meta/"     // meta/<name>
	prefixDocID            = "docid/"    // docid/<key> -> interned uint32 id
	prefixIDDoc            = "iddoc/"    // iddoc/<id> -> key
	prefixPosting          = "post/"     // post/<indexid>/<segpos>/<token> -> roaring bitmap
	prefixDocRef           = "docref/"   // docref/<key>/<targetid> -> {} (target->doc reference edge)
	prefixMutationRef      = "mutref/"   // mutref/<key> -> {} (local-mutation pin)
)

// batchIDKey returns a fixed-width decimal encoding of a BatchId so keys
// sort numerically under plain byte comparison. Negative ids never occur
// (BatchIds start at 1); this encodes up to 19 digits, covering all of
// int64's positive range.
func batchIDKey(id int64) string {
	return fmt.Sprintf("%019d", id)
}

// timeKey encodes a (seconds, nanos) read-time as a fixed-width,
// separator-free digit string (28 characters) so it sorts chronologically
// under byte comparison and a suffix scan can split "<timekey><key>" on the
// first remaining "/" unambiguously.
func timeKey(seconds int64, nanos int32) string {
	return fmt.Sprintf("%019d%09d", seconds, nanos)
}

func targetIDKey(id int32) string {
	return fmt.Sprintf("%010d", uint32(id))
}

func mutationKey(user string, batchID int64) []byte {
	return []byte(prefixMutation + user + "/" + batchIDKey(batchID))
}

func mutationUserPrefix(user string) []byte {
	return []byte(prefixMutation + user + "/")
}

func remoteDocKey(key string) []byte {
	return []byte(prefixRemoteDoc + key)
}

func remoteDocTimeKey(collection string, seconds int64, nanos int32, key string) []byte {
	return []byte(prefixRemoteDocTime + collection + "/" + timeKey(seconds, nanos) + "/" + key)
}

func remoteDocTimeCollectionPrefix(collection string) []byte {
	return []byte(prefixRemoteDocTime + collection + "/")
}

func remoteDocTimeGroupKey(group string, seconds int64, nanos int32, key string) []byte {
	return []byte(prefixRemoteDocTimeGrp + group + "/" + timeKey(seconds, nanos) + "/" + key)
}

func remoteDocTimeGroupPrefix(group string) []byte {
	return []byte(prefixRemoteDocTimeGrp + group + "/")
}

// splitTimeIndexSuffix strips prefix from key and splits the remainder into
// its fixed-width timekey and trailing document-key string.
func splitTimeIndexSuffix(key []byte, prefix []byte) (timekey, docKey string, ok bool) {
	if len(key) <= len(prefix) {
		return "", "", false
	}

	suffix := string(key[len(prefix):])
	const timeKeyWidth = 28 // 19 + 9 digits, see timeKey

	if len(suffix) <= timeKeyWidth+1 || suffix[timeKeyWidth] != '/' {
		return "", "", false
	}

	return suffix[:timeKeyWidth], suffix[timeKeyWidth+1:], true
}

// splitBatchIndexSuffix strips prefix from key and splits the remainder
// into its fixed-width BatchId and trailing document-key string.
func splitBatchIndexSuffix(key []byte, prefix []byte) (batchID int64, docKey string, ok bool) {
	if len(key) <= len(prefix) {
		return 0, "", false
	}

	suffix := string(key[len(prefix):])
	const batchIDWidth = 19 // see batchIDKey

	if len(suffix) <= batchIDWidth+1 || suffix[batchIDWidth] != '/' {
		return 0, "", false
	}

	var id int64
	if _, err := fmt.Sscanf(suffix[:batchIDWidth], "%d", &id); err != nil {
		return 0, "", false
	}

	return id, suffix[batchIDWidth+1:], true
}

func overlayKey(user, key string) []byte {
	return []byte(prefixOverlay + user + "/" + key)
}

func overlayUserPrefix(user string) []byte {
	return []byte(prefixOverlay + user + "/")
}

func overlayCollectionKey(collection string, batchID int64, key string) []byte {
	return []byte(prefixOverlayColl + collection + "/" + batchIDKey(batchID) + "/" + key)
}

func overlayCollectionPrefix(collection string) []byte {
	return []byte(prefixOverlayColl + collection + "/")
}

func overlayGroupKey(group string, batchID int64, key string) []byte {
	return []byte(prefixOverlayGroup + group + "/" + batchIDKey(batchID) + "/" + key)
}

func overlayGroupPrefix(group string) []byte {
	return []byte(prefixOverlayGroup + group + "/")
}

func targetByIDKey(id int32) []byte {
	return []byte(prefixTargetByID + targetIDKey(id))
}

func targetByCanonicalKey(canonicalID string) []byte {
	return []byte(prefixTargetByCanon + canonicalID)
}

func collectionParentKey(collectionID, parentPath string) []byte {
	return []byte(prefixCollParent + collectionID + "/" + parentPath)
}

func collectionParentPrefix(collectionID string) []byte {
	return []byte(prefixCollParent + collectionID + "/")
}

func fieldIndexKey(collectionGroup, indexID string) []byte {
	return []byte(prefixFieldIndex + collectionGroup + "/" + indexID)
}

func metaKey(name string) []byte {
	return []byte(prefixMeta + name)
}

func docIDKey(key string) []byte {
	return []byte(prefixDocID + key)
}

func idDocKey(id uint32) []byte {
	return []byte(prefixIDDoc + fmt.Sprintf("%010d", id))
}

func postingKey(indexID string, segPos int, token string) []byte {
	return []byte(prefixPosting + indexID + "/" + fmt.Sprintf("%d", segPos) + "/" + token)
}

func docRefKey(key string, targetID int32) []byte {
	return []byte(prefixDocRef + key + "/" + targetIDKey(targetID))
}

func docRefPrefix(key string) []byte {
	return []byte(prefixDocRef + key + "/")
}

func mutationRefKey(key string) []byte {
	return []byte(prefixMutationRef + key)
}
