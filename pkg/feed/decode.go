package feed

import (
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

// Change is a typed view of a ChangeEvent.
type Change[T any] struct {
	Type     model.ChangeType
	EntityID string
	Old      *T
	New      *T
}

// Decode unmarshals the old and new images of ev into T.
func Decode[T any](ev model.ChangeEvent) (Change[T], error) {
	c := Change[T]{Type: ev.Type, EntityID: ev.EntityID}
	if len(ev.Old) > 0 && string(ev.Old) != "null" {
		c.Old = new(T)
		if err := json.Unmarshal(ev.Old, c.Old); err != nil {
			return c, fmt.Errorf("decode %s old image: %w", ev.Collection, err)
		}
	}
	if len(ev.New) > 0 && string(ev.New) != "null" {
		c.New = new(T)
		if err := json.Unmarshal(ev.New, c.New); err != nil {
			return c, fmt.Errorf("decode %s new image: %w", ev.Collection, err)
		}
	}
	return c, nil
}

// DecodePatch unmarshals only the fields an update carried into the patch
// type P. Inserts without a patch fall back to the full new image.
func DecodePatch[P any](ev model.ChangeEvent) (*P, error) {
	raw := ev.Patch
	if len(raw) == 0 || string(raw) == "null" {
		raw = ev.New
	}
	p := new(P)
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s patch: %w", ev.Collection, err)
	}
	return p, nil
}

// ByEntity matches events for a single entity id.
func ByEntity(id string) Predicate {
	return func(ev model.ChangeEvent) bool {
		return ev.EntityID == id
	}
}
