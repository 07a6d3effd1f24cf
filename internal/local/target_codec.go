package local

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tonimelisma/firedoc/internal/core"
	"github.com/tonimelisma/firedoc/internal/model"
)

// Target/TargetData DTOs, following codec.go's JSON-DTO approach: Filter is
// an interface (FieldFilter or CompositeFilter), so filterDTO carries a kind
// discriminator and recurses for composite children.

type filterDTO struct {
	IsComposite bool `json:"c,omitempty"`

	// FieldFilter case.
	Path     fieldPathDTO `json:"p,omitempty"`
	Op       core.Operator `json:"o,omitempty"`
	Value    valueDTO      `json:"v,omitempty"`
	IsKeyRef bool          `json:"kr,omitempty"`

	// CompositeFilter case.
	CompositeOp core.CompositeOperator `json:"co,omitempty"`
	Children    []filterDTO            `json:"ch,omitempty"`
}

func encodeFilter(f core.Filter) (filterDTO, error) {
	switch v := f.(type) {
	case core.FieldFilter:
		valDTO, err := encodeValue(v.Value)
		if err != nil {
			return filterDTO{}, err
		}

		return filterDTO{Path: encodeFieldPath(v.Path), Op: v.Op, Value: valDTO, IsKeyRef: v.IsKeyRef}, nil
	case core.CompositeFilter:
		children := make([]filterDTO, len(v.Children))

		for i, child := range v.Children {
			dto, err := encodeFilter(child)
			if err != nil {
				return filterDTO{}, err
			}

			children[i] = dto
		}

		return filterDTO{IsComposite: true, CompositeOp: v.Op, Children: children}, nil
	default:
		return filterDTO{}, fmt.Errorf("local: unhandled filter type %T", f)
	}
}

func decodeFilter(dto filterDTO) (core.Filter, error) {
	if dto.IsComposite {
		children := make([]core.Filter, len(dto.Children))

		for i, child := range dto.Children {
			f, err := decodeFilter(child)
			if err != nil {
				return nil, err
			}

			children[i] = f
		}

		return core.CompositeFilter{Op: dto.CompositeOp, Children: children}, nil
	}

	val, err := decodeValue(dto.Value)
	if err != nil {
		return nil, err
	}

	return core.FieldFilter{Path: decodeFieldPath(dto.Path), Op: dto.Op, Value: val, IsKeyRef: dto.IsKeyRef}, nil
}

type orderByDTO struct {
	Path      fieldPathDTO   `json:"p"`
	Direction core.Direction `json:"d"`
}

type boundDTO struct {
	Position  []valueDTO `json:"pos"`
	Inclusive bool       `json:"inc"`
}

func encodeBound(b *core.Bound) (*boundDTO, error) {
	if b == nil {
		return nil, nil
	}

	position := make([]valueDTO, len(b.Position))

	for i, v := range b.Position {
		dto, err := encodeValue(v)
		if err != nil {
			return nil, err
		}

		position[i] = dto
	}

	return &boundDTO{Position: position, Inclusive: b.Inclusive}, nil
}

func decodeBound(dto *boundDTO) (*core.Bound, error) {
	if dto == nil {
		return nil, nil
	}

	position := make([]model.Value, len(dto.Position))

	for i, v := range dto.Position {
		val, err := decodeValue(v)
		if err != nil {
			return nil, err
		}

		position[i] = val
	}

	return &core.Bound{Position: position, Inclusive: dto.Inclusive}, nil
}

type targetDTO struct {
	CollectionPath  fieldPathDTO `json:"cp"`
	CollectionGroup string       `json:"cg,omitempty"`
	Filters         []filterDTO  `json:"f,omitempty"`
	OrderBy         []orderByDTO `json:"ob,omitempty"`
	Limit           int32        `json:"lim,omitempty"`
	StartAt         *boundDTO    `json:"sa,omitempty"`
	EndAt           *boundDTO    `json:"ea,omitempty"`
}

func encodeTarget(t core.Target) (targetDTO, error) {
	dto := targetDTO{
		CollectionPath:  t.CollectionPath.Segments(),
		CollectionGroup: t.CollectionGroup,
		Limit:           t.Limit,
	}

	for _, f := range t.Filters {
		fdto, err := encodeFilter(f)
		if err != nil {
			return targetDTO{}, err
		}

		dto.Filters = append(dto.Filters, fdto)
	}

	for _, ob := range t.OrderBy {
		dto.OrderBy = append(dto.OrderBy, orderByDTO{Path: encodeFieldPath(ob.Path), Direction: ob.Direction})
	}

	startAt, err := encodeBound(t.StartAt)
	if err != nil {
		return targetDTO{}, err
	}

	dto.StartAt = startAt

	endAt, err := encodeBound(t.EndAt)
	if err != nil {
		return targetDTO{}, err
	}

	dto.EndAt = endAt

	return dto, nil
}

func decodeTarget(dto targetDTO) (core.Target, error) {
	t := core.Target{
		CollectionPath:  model.NewResourcePath(dto.CollectionPath...),
		CollectionGroup: dto.CollectionGroup,
		Limit:           dto.Limit,
	}

	for _, fdto := range dto.Filters {
		f, err := decodeFilter(fdto)
		if err != nil {
			return core.Target{}, err
		}

		t.Filters = append(t.Filters, f)
	}

	for _, obdto := range dto.OrderBy {
		t.OrderBy = append(t.OrderBy, core.OrderBy{Path: decodeFieldPath(obdto.Path), Direction: obdto.Direction})
	}

	startAt, err := decodeBound(dto.StartAt)
	if err != nil {
		return core.Target{}, err
	}

	t.StartAt = startAt

	endAt, err := decodeBound(dto.EndAt)
	if err != nil {
		return core.Target{}, err
	}

	t.EndAt = endAt

	return t, nil
}

type targetDataDTO struct {
	Target          targetDTO `json:"t"`
	TargetID        int32     `json:"id"`
	SequenceNumber  int64     `json:"seq"`
	Purpose         core.TargetPurpose `json:"purp"`
	ListenSessionID string    `json:"lsid"`

	SnapshotSec          int64  `json:"ss,omitempty"`
	SnapshotNano         int32  `json:"sn,omitempty"`
	LimboFreeSec         int64  `json:"lfs,omitempty"`
	LimboFreeNano        int32  `json:"lfn,omitempty"`
	ResumeToken          []byte `json:"rt,omitempty"`
	ExpectedCount        *int32 `json:"ec,omitempty"`
}

func encodeTargetData(td core.TargetData) ([]byte, error) {
	targetPart, err := encodeTarget(td.Target)
	if err != nil {
		return nil, err
	}

	dto := targetDataDTO{
		Target:          targetPart,
		TargetID:        td.TargetID,
		SequenceNumber:  td.SequenceNumber,
		Purpose:         td.Purpose,
		ListenSessionID: td.ListenSessionID.String(),
		SnapshotSec:     td.SnapshotVersion.Seconds,
		SnapshotNano:    td.SnapshotVersion.Nanos,
		LimboFreeSec:    td.LastLimboFreeSnapshotVersion.Seconds,
		LimboFreeNano:   td.LastLimboFreeSnapshotVersion.Nanos,
		ResumeToken:     td.ResumeToken,
		ExpectedCount:   td.ExpectedCount,
	}

	return json.Marshal(dto)
}

func decodeTargetData(raw []byte) (core.TargetData, error) {
	var dto targetDataDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return core.TargetData{}, fmt.Errorf("local: decode target data: %w", err)
	}

	target, err := decodeTarget(dto.Target)
	if err != nil {
		return core.TargetData{}, err
	}

	td := core.TargetData{
		Target:                       target,
		TargetID:                     dto.TargetID,
		SequenceNumber:               dto.SequenceNumber,
		Purpose:                      dto.Purpose,
		SnapshotVersion:              model.SnapshotVersion{Timestamp: model.Timestamp{Seconds: dto.SnapshotSec, Nanos: dto.SnapshotNano}},
		LastLimboFreeSnapshotVersion: model.SnapshotVersion{Timestamp: model.Timestamp{Seconds: dto.LimboFreeSec, Nanos: dto.LimboFreeNano}},
		ResumeToken:                  dto.ResumeToken,
		ExpectedCount:                dto.ExpectedCount,
	}

	if id, err := uuid.Parse(dto.ListenSessionID); err == nil {
		td.ListenSessionID = id
	}

	return td, nil
}
