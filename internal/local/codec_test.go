package local

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/firedoc/internal/model"
)

func TestValueCodec_RoundTrip(t *testing.T) {
	key := model.MustDocumentKey("rooms", "1")

	values := []model.Value{
		model.Null(),
		model.Bool(true),
		model.Int(42),
		model.Double(3.5),
		model.TimestampValue(model.Timestamp{Seconds: 100, Nanos: 7}),
		model.String("héllo"),
		model.Bytes([]byte{1, 2, 3}),
		model.Ref(model.Reference{DatabaseID: "db", Key: key}),
		model.Geo(model.GeoPoint{Latitude: 1.5, Longitude: -2.5}),
		model.Array(model.Int(1), model.String("x")),
		model.Vector(1, 2, 3),
		model.Map(map[string]model.Value{"a": model.Int(1), "b": model.Bool(false)}),
	}

	for _, v := range values {
		dto, err := encodeValue(v)
		require.NoError(t, err)

		got, err := decodeValue(dto)
		require.NoError(t, err)

		assert.True(t, model.Equal(v, got), "round trip mismatch for kind %d", v.Kind())
	}
}

func TestValueCodec_RejectsServerTimestamp(t *testing.T) {
	_, err := encodeValue(model.PendingServerTimestamp(time.Now(), nil))
	assert.Error(t, err)
}

func TestDocumentCodec_RoundTrip(t *testing.T) {
	key := model.MustDocumentKey("rooms", "1")
	version := model.SnapshotVersion{Timestamp: model.Timestamp{Seconds: 10}}

	docs := []model.Document{
		model.InvalidDocument(key),
		model.NewFoundDocument(key, version, map[string]model.Value{"x": model.Int(1)}).WithLocalMutations(),
		model.NewNoDocument(key, version),
		model.NewUnknownDocument(key, version),
	}

	for _, d := range docs {
		dto, err := encodeDocument(d)
		require.NoError(t, err)

		got, err := decodeDocument(dto)
		require.NoError(t, err)

		assert.True(t, d.Equal(got), "round trip mismatch for doc kind %d", d.DocKind())
	}
}

func TestMutationCodec_RoundTrip(t *testing.T) {
	key := model.MustDocumentKey("rooms", "1")

	mutations := []model.Mutation{
		model.NewSetMutation(key, map[string]model.Value{"x": model.Int(1)}, model.NoPrecondition(), model.FieldTransform{
			Path: model.NewFieldPath("count"),
			Op:   model.IncrementOp(model.Int(1)),
		}),
		model.NewPatchMutation(key, map[string]model.Value{"x": model.Int(2)}, model.NewFieldMask(model.NewFieldPath("x")), model.ExistsPrecondition(true)),
		model.NewDeleteMutation(key, model.UpdateTimePrecondition(model.SnapshotVersion{Timestamp: model.Timestamp{Seconds: 5}})),
		model.NewVerifyMutation(key, model.NoPrecondition()),
	}

	for _, m := range mutations {
		dto, err := encodeMutation(m)
		require.NoError(t, err)

		got, err := decodeMutation(dto)
		require.NoError(t, err)

		assert.Equal(t, m.Kind(), got.Kind())
		assert.True(t, m.Key().Equal(got.Key()))
		assert.Equal(t, m.Precondition(), got.Precondition())
	}
}

func TestMutationBatchCodec_RoundTrip(t *testing.T) {
	key := model.MustDocumentKey("rooms", "1")
	batch := model.NewMutationBatch(7, time.Unix(1000, 0).UTC(), nil, []model.Mutation{
		model.NewSetMutation(key, map[string]model.Value{"x": model.Int(1)}, model.NoPrecondition()),
	})

	raw, err := encodeMutationBatch(batch)
	require.NoError(t, err)

	got, err := decodeMutationBatch(raw)
	require.NoError(t, err)

	assert.Equal(t, batch.BatchID, got.BatchID)
	assert.Equal(t, batch.CorrelationID, got.CorrelationID)
	assert.True(t, batch.LocalWriteTime.Equal(got.LocalWriteTime))
	assert.Len(t, got.Mutations, 1)
}

func TestOverlayCodec_RoundTrip(t *testing.T) {
	key := model.MustDocumentKey("rooms", "1")
	overlay := model.NewOverlay(key, model.NewSetMutation(key, map[string]model.Value{"x": model.Int(1)}, model.NoPrecondition()), 3)

	raw, err := encodeOverlay(overlay)
	require.NoError(t, err)

	got, err := decodeOverlay(raw)
	require.NoError(t, err)

	assert.True(t, overlay.Key.Equal(got.Key))
	assert.Equal(t, overlay.LargestBatchID, got.LargestBatchID)
	assert.Equal(t, overlay.Mutation.Kind(), got.Mutation.Kind())
}
