package local

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tonimelisma/firedoc/internal/model"
)

func parseUUID(s string) (uuid.UUID, error) { return uuid.Parse(s) }

// Persisted records are serialized as JSON DTOs rather than a hand-rolled
// binary format: spec §6 only requires that persistence preserve byte
// identity and ordering of *keys*, never of values, so any deterministic
// round-trip codec for values satisfies it. No binary/schema-aware codec
// (protobuf, msgpack, cap'n proto) appears anywhere in the retrieved
// pack, so stdlib encoding/json is used here rather than inventing or
// vendoring one.

type valueDTO struct {
	Kind   model.Kind           `json:"k"`
	Bool   bool                 `json:"b,omitempty"`
	Int    int64                `json:"i,omitempty"`
	Double float64              `json:"d,omitempty"`
	TSSec  int64                `json:"ts,omitempty"`
	TSNano int32                `json:"tn,omitempty"`
	Str    string               `json:"s,omitempty"`
	Bytes  []byte               `json:"by,omitempty"`
	RefDB  string               `json:"rd,omitempty"`
	RefKey string               `json:"rk,omitempty"`
	GeoLat float64              `json:"gla,omitempty"`
	GeoLng float64              `json:"glo,omitempty"`
	Array  []valueDTO           `json:"a,omitempty"`
	Vector []float64            `json:"v,omitempty"`
	Map    map[string]valueDTO  `json:"m,omitempty"`
}

func encodeValue(v model.Value) (valueDTO, error) {
	switch v.Kind() {
	case model.KindNull:
		return valueDTO{Kind: v.Kind()}, nil
	case model.KindBoolean:
		return valueDTO{Kind: v.Kind(), Bool: v.AsBool()}, nil
	case model.KindInteger:
		return valueDTO{Kind: v.Kind(), Int: v.AsInt64()}, nil
	case model.KindDouble:
		return valueDTO{Kind: v.Kind(), Double: v.AsFloat64()}, nil
	case model.KindTimestamp:
		ts := v.AsTimestamp()
		return valueDTO{Kind: v.Kind(), TSSec: ts.Seconds, TSNano: ts.Nanos}, nil
	case model.KindString:
		return valueDTO{Kind: v.Kind(), Str: v.AsString()}, nil
	case model.KindBytes:
		return valueDTO{Kind: v.Kind(), Bytes: v.AsBytes()}, nil
	case model.KindReference:
		ref := v.AsReference()
		return valueDTO{Kind: v.Kind(), RefDB: ref.DatabaseID, RefKey: ref.Key.String()}, nil
	case model.KindGeoPoint:
		g := v.AsGeoPoint()
		return valueDTO{Kind: v.Kind(), GeoLat: g.Latitude, GeoLng: g.Longitude}, nil
	case model.KindArray:
		elements := v.AsArray()
		dtos := make([]valueDTO, len(elements))

		for i, el := range elements {
			dto, err := encodeValue(el)
			if err != nil {
				return valueDTO{}, err
			}

			dtos[i] = dto
		}

		return valueDTO{Kind: v.Kind(), Array: dtos}, nil
	case model.KindVector:
		return valueDTO{Kind: v.Kind(), Vector: v.AsVector()}, nil
	case model.KindMap:
		fields := v.AsMap()
		dtos := make(map[string]valueDTO, len(fields))

		for k, fv := range fields {
			dto, err := encodeValue(fv)
			if err != nil {
				return valueDTO{}, err
			}

			dtos[k] = dto
		}

		return valueDTO{Kind: v.Kind(), Map: dtos}, nil
	case model.KindServerTimestamp:
		return valueDTO{}, fmt.Errorf("local: a pending ServerTimestamp value must never be persisted")
	default:
		return valueDTO{}, fmt.Errorf("local: unhandled value kind %d in encodeValue", v.Kind())
	}
}

func decodeValue(dto valueDTO) (model.Value, error) {
	switch dto.Kind {
	case model.KindNull:
		return model.Null(), nil
	case model.KindBoolean:
		return model.Bool(dto.Bool), nil
	case model.KindInteger:
		return model.Int(dto.Int), nil
	case model.KindDouble:
		return model.Double(dto.Double), nil
	case model.KindTimestamp:
		return model.TimestampValue(model.Timestamp{Seconds: dto.TSSec, Nanos: dto.TSNano}), nil
	case model.KindString:
		return model.String(dto.Str), nil
	case model.KindBytes:
		return model.Bytes(dto.Bytes), nil
	case model.KindReference:
		key, err := model.DocumentKeyFromString(dto.RefKey)
		if err != nil {
			return model.Value{}, fmt.Errorf("local: decode reference: %w", err)
		}

		return model.Ref(model.Reference{DatabaseID: dto.RefDB, Key: key}), nil
	case model.KindGeoPoint:
		return model.Geo(model.GeoPoint{Latitude: dto.GeoLat, Longitude: dto.GeoLng}), nil
	case model.KindArray:
		elements := make([]model.Value, len(dto.Array))

		for i, el := range dto.Array {
			v, err := decodeValue(el)
			if err != nil {
				return model.Value{}, err
			}

			elements[i] = v
		}

		return model.Array(elements...), nil
	case model.KindVector:
		return model.Vector(dto.Vector...), nil
	case model.KindMap:
		fields := make(map[string]model.Value, len(dto.Map))

		for k, fv := range dto.Map {
			v, err := decodeValue(fv)
			if err != nil {
				return model.Value{}, err
			}

			fields[k] = v
		}

		return model.Map(fields), nil
	default:
		return model.Value{}, fmt.Errorf("local: unhandled value kind %d in decodeValue", dto.Kind)
	}
}

func encodeObject(data map[string]model.Value) (map[string]valueDTO, error) {
	out := make(map[string]valueDTO, len(data))

	for k, v := range data {
		dto, err := encodeValue(v)
		if err != nil {
			return nil, err
		}

		out[k] = dto
	}

	return out, nil
}

func decodeObject(data map[string]valueDTO) (map[string]model.Value, error) {
	out := make(map[string]model.Value, len(data))

	for k, dto := range data {
		v, err := decodeValue(dto)
		if err != nil {
			return nil, err
		}

		out[k] = v
	}

	return out, nil
}

type fieldPathDTO = []string

func encodeFieldPath(p model.FieldPath) fieldPathDTO { return p.Segments() }

func decodeFieldPath(dto fieldPathDTO) model.FieldPath { return model.NewFieldPath(dto...) }

func encodeFieldMask(m model.FieldMask) []fieldPathDTO {
	paths := m.Paths()
	out := make([]fieldPathDTO, len(paths))

	for i, p := range paths {
		out[i] = encodeFieldPath(p)
	}

	return out
}

func decodeFieldMask(dto []fieldPathDTO) model.FieldMask {
	paths := make([]model.FieldPath, len(dto))
	for i, seg := range dto {
		paths[i] = decodeFieldPath(seg)
	}

	return model.NewFieldMask(paths...)
}

type preconditionDTO struct {
	Kind          model.PreconditionKind `json:"k"`
	Exists        bool                   `json:"e,omitempty"`
	UpdateTimeSec int64                  `json:"us,omitempty"`
	UpdateTimeNs  int32                  `json:"un,omitempty"`
}

func encodePreconditionValue(p model.Precondition) preconditionDTO {
	switch p.Kind() {
	case model.PreconditionExists:
		return preconditionDTO{Kind: p.Kind(), Exists: p.ExistsValue()}
	case model.PreconditionUpdateTime:
		ut := p.UpdateTime()
		return preconditionDTO{Kind: p.Kind(), UpdateTimeSec: ut.Seconds, UpdateTimeNs: ut.Nanos}
	default:
		return preconditionDTO{Kind: p.Kind()}
	}
}

func decodePreconditionValue(dto preconditionDTO) model.Precondition {
	switch dto.Kind {
	case model.PreconditionExists:
		return model.ExistsPrecondition(dto.Exists)
	case model.PreconditionUpdateTime:
		return model.UpdateTimePrecondition(model.SnapshotVersion{Timestamp: model.Timestamp{Seconds: dto.UpdateTimeSec, Nanos: dto.UpdateTimeNs}})
	default:
		return model.NoPrecondition()
	}
}

type transformDTO struct {
	Path    fieldPathDTO        `json:"p"`
	OpKind  model.TransformKind `json:"o"`
	Operand valueDTO            `json:"v"`
}

func encodeFieldTransform(ft model.FieldTransform) (transformDTO, error) {
	operand, err := encodeValue(ft.Op.Operand())
	if err != nil {
		return transformDTO{}, err
	}

	return transformDTO{Path: encodeFieldPath(ft.Path), OpKind: ft.Op.Kind(), Operand: operand}, nil
}

func decodeFieldTransform(dto transformDTO) (model.FieldTransform, error) {
	operand, err := decodeValue(dto.Operand)
	if err != nil {
		return model.FieldTransform{}, err
	}

	var op model.TransformOperation

	switch dto.OpKind {
	case model.TransformServerTimestamp:
		op = model.ServerTimestampOp()
	case model.TransformIncrement:
		op = model.IncrementOp(operand)
	case model.TransformArrayUnion:
		op = model.ArrayUnionOp(operand.AsArray())
	case model.TransformArrayRemove:
		op = model.ArrayRemoveOp(operand.AsArray())
	default:
		return model.FieldTransform{}, fmt.Errorf("local: unhandled transform kind %d", dto.OpKind)
	}

	return model.FieldTransform{Path: decodeFieldPath(dto.Path), Op: op}, nil
}

type mutationDTO struct {
	Kind         model.MutationKind  `json:"k"`
	Key          string              `json:"key"`
	Value        map[string]valueDTO `json:"v,omitempty"`
	Mask         []fieldPathDTO      `json:"m,omitempty"`
	Precondition preconditionDTO     `json:"pc"`
	Transforms   []transformDTO      `json:"tf,omitempty"`
}

func encodeMutation(m model.Mutation) (mutationDTO, error) {
	dto := mutationDTO{
		Kind:         m.Kind(),
		Key:          m.Key().String(),
		Mask:         encodeFieldMask(m.Mask()),
		Precondition: encodePreconditionValue(m.Precondition()),
	}

	value, err := encodeObject(mutationValueData(m))
	if err != nil {
		return mutationDTO{}, err
	}

	dto.Value = value

	for _, ft := range m.FieldTransforms() {
		tdto, err := encodeFieldTransform(ft)
		if err != nil {
			return mutationDTO{}, err
		}

		dto.Transforms = append(dto.Transforms, tdto)
	}

	return dto, nil
}

// mutationValueData exposes the mutation's own value map without requiring
// a dedicated accessor distinguishing Set/Patch: Verify and Delete carry no
// value, so this returns nil for those.
func mutationValueData(m model.Mutation) map[string]model.Value {
	if m.Kind() != model.MutationSet && m.Kind() != model.MutationPatch {
		return nil
	}

	// Reconstructed by replaying ApplyToLocalView against an empty base
	// would lose mask information, so the mutation type must expose its
	// raw value map directly.
	return m.RawValue()
}

func decodeMutation(dto mutationDTO) (model.Mutation, error) {
	key, err := model.DocumentKeyFromString(dto.Key)
	if err != nil {
		return model.Mutation{}, fmt.Errorf("local: decode mutation key: %w", err)
	}

	value, err := decodeObject(dto.Value)
	if err != nil {
		return model.Mutation{}, err
	}

	mask := decodeFieldMask(dto.Mask)
	precondition := decodePreconditionValue(dto.Precondition)

	transforms := make([]model.FieldTransform, len(dto.Transforms))

	for i, tdto := range dto.Transforms {
		ft, err := decodeFieldTransform(tdto)
		if err != nil {
			return model.Mutation{}, err
		}

		transforms[i] = ft
	}

	switch dto.Kind {
	case model.MutationSet:
		return model.NewSetMutation(key, value, precondition, transforms...), nil
	case model.MutationPatch:
		return model.NewPatchMutation(key, value, mask, precondition, transforms...), nil
	case model.MutationDelete:
		return model.NewDeleteMutation(key, precondition), nil
	case model.MutationVerify:
		return model.NewVerifyMutation(key, precondition), nil
	default:
		return model.Mutation{}, fmt.Errorf("local: unhandled mutation kind %d", dto.Kind)
	}
}

type documentDTO struct {
	Key          string              `json:"key"`
	Kind         model.DocumentKind  `json:"k"`
	VersionSec   int64               `json:"vs,omitempty"`
	VersionNano  int32               `json:"vn,omitempty"`
	Data         map[string]valueDTO `json:"d,omitempty"`
	HasLocal     bool                `json:"hl,omitempty"`
	HasCommitted bool                `json:"hc,omitempty"`
}

func encodeDocument(d model.Document) (documentDTO, error) {
	data, err := encodeObject(d.Data())
	if err != nil {
		return documentDTO{}, err
	}

	v := d.Version()

	return documentDTO{
		Key:          d.Key().String(),
		Kind:         d.DocKind(),
		VersionSec:   v.Seconds,
		VersionNano:  v.Nanos,
		Data:         data,
		HasLocal:     d.HasLocalMutations(),
		HasCommitted: d.HasCommittedMutations(),
	}, nil
}

func decodeDocument(dto documentDTO) (model.Document, error) {
	key, err := model.DocumentKeyFromString(dto.Key)
	if err != nil {
		return model.Document{}, fmt.Errorf("local: decode document key: %w", err)
	}

	version := model.SnapshotVersion{Timestamp: model.Timestamp{Seconds: dto.VersionSec, Nanos: dto.VersionNano}}

	data, err := decodeObject(dto.Data)
	if err != nil {
		return model.Document{}, err
	}

	var doc model.Document

	switch dto.Kind {
	case model.KindInvalidDocument:
		doc = model.InvalidDocument(key)
	case model.KindFoundDocument:
		doc = model.NewFoundDocument(key, version, data)
	case model.KindNoDocument:
		doc = model.NewNoDocument(key, version)
	case model.KindUnknownDocument:
		doc = model.NewUnknownDocument(key, version)
	default:
		return model.Document{}, fmt.Errorf("local: unhandled document kind %d", dto.Kind)
	}

	if dto.HasLocal {
		doc = doc.WithLocalMutations()
	}

	if dto.HasCommitted {
		doc = doc.WithCommittedMutations()
	}

	return doc, nil
}

type batchDTO struct {
	BatchID        int64         `json:"id"`
	CorrelationID  string        `json:"cid"`
	LocalWriteUnix int64         `json:"lw"`
	BaseMutations  []mutationDTO `json:"base,omitempty"`
	Mutations      []mutationDTO `json:"mut"`
}

func encodeMutationBatch(b model.MutationBatch) ([]byte, error) {
	dto := batchDTO{
		BatchID:        b.BatchID,
		CorrelationID:  b.CorrelationID.String(),
		LocalWriteUnix: b.LocalWriteTime.UnixNano(),
	}

	for _, m := range b.BaseMutations {
		mdto, err := encodeMutation(m)
		if err != nil {
			return nil, err
		}

		dto.BaseMutations = append(dto.BaseMutations, mdto)
	}

	for _, m := range b.Mutations {
		mdto, err := encodeMutation(m)
		if err != nil {
			return nil, err
		}

		dto.Mutations = append(dto.Mutations, mdto)
	}

	return json.Marshal(dto)
}

func decodeMutationBatch(raw []byte) (model.MutationBatch, error) {
	var dto batchDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return model.MutationBatch{}, fmt.Errorf("local: decode mutation batch: %w", err)
	}

	base, err := decodeMutationSlice(dto.BaseMutations)
	if err != nil {
		return model.MutationBatch{}, err
	}

	mutations, err := decodeMutationSlice(dto.Mutations)
	if err != nil {
		return model.MutationBatch{}, err
	}

	batch := model.NewMutationBatch(dto.BatchID, time.Unix(0, dto.LocalWriteUnix).UTC(), base, mutations)

	if cid, err := parseUUID(dto.CorrelationID); err == nil {
		batch.CorrelationID = cid
	}

	return batch, nil
}

func decodeMutationSlice(dtos []mutationDTO) ([]model.Mutation, error) {
	out := make([]model.Mutation, len(dtos))

	for i, dto := range dtos {
		m, err := decodeMutation(dto)
		if err != nil {
			return nil, err
		}

		out[i] = m
	}

	return out, nil
}

type overlayDTO struct {
	Key            string      `json:"key"`
	Mutation       mutationDTO `json:"m"`
	LargestBatchID int64       `json:"bid"`
}

func encodeOverlay(o model.Overlay) ([]byte, error) {
	mdto, err := encodeMutation(o.Mutation)
	if err != nil {
		return nil, err
	}

	return json.Marshal(overlayDTO{Key: o.Key.String(), Mutation: mdto, LargestBatchID: o.LargestBatchID})
}

func decodeOverlay(raw []byte) (model.Overlay, error) {
	var dto overlayDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return model.Overlay{}, fmt.Errorf("local: decode overlay: %w", err)
	}

	key, err := model.DocumentKeyFromString(dto.Key)
	if err != nil {
		return model.Overlay{}, fmt.Errorf("local: decode overlay key: %w", err)
	}

	mutation, err := decodeMutation(dto.Mutation)
	if err != nil {
		return model.Overlay{}, err
	}

	return model.NewOverlay(key, mutation, dto.LargestBatchID), nil
}
