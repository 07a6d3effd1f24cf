package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tonimelisma/firedoc/internal/model"
)

func TestTarget_CanonicalID(t *testing.T) {
	rooms := model.NewResourcePath("rooms")

	base := func() Target {
		return Target{
			CollectionPath: rooms,
			Filters:        []Filter{NewFieldFilter(model.NewFieldPath("age"), OpGreaterThan, model.Int(10))},
			OrderBy:        []OrderBy{{Path: model.NewFieldPath("age"), Direction: Ascending}},
			Limit:          5,
		}
	}

	t.Run("identical targets share a canonical id", func(t *testing.T) {
		assert.Equal(t, base().CanonicalID(), base().CanonicalID())
	})

	t.Run("differing filters produce differing ids", func(t *testing.T) {
		a := base()
		b := base()
		b.Filters = []Filter{NewFieldFilter(model.NewFieldPath("age"), OpGreaterThan, model.Int(20))}

		assert.NotEqual(t, a.CanonicalID(), b.CanonicalID())
	})

	t.Run("limit-to-last queries canonicalize to the same id as their direction-inverted Target", func(t *testing.T) {
		start := NewBound(true, model.Int(1))
		end := NewBound(true, model.Int(2))

		first := Query{
			CollectionPath:  rooms,
			ExplicitOrderBy: []OrderBy{{Path: model.NewFieldPath("age"), Direction: Descending}},
			StartAt:         &end,
			EndAt:           &start,
		}

		last := Query{
			CollectionPath:  rooms,
			ExplicitOrderBy: []OrderBy{{Path: model.NewFieldPath("age"), Direction: Ascending}},
			LimitType:       LimitToLast,
			StartAt:         &start,
			EndAt:           &end,
		}

		assert.Equal(t, first.ToTarget().CanonicalID(), last.ToTarget().CanonicalID())
	})
}
