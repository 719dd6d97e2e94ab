package feed

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

func TestDecode(t *testing.T) {
	oldRaw, _ := json.Marshal(model.Clinic{Name: "Dental", CurrentNumber: 4, CallToken: "a"})
	newRaw, _ := json.Marshal(model.Clinic{Name: "Dental", CurrentNumber: 5, CallToken: "b"})

	c, err := Decode[model.Clinic](model.ChangeEvent{Type: model.ChangeUpdate, Old: oldRaw, New: newRaw})
	require.NoError(t, err)
	require.NotNil(t, c.Old)
	require.NotNil(t, c.New)
	assert.Equal(t, 4, c.Old.CurrentNumber)
	assert.Equal(t, "b", c.New.CallToken)

	ins, err := Decode[model.Clinic](model.ChangeEvent{Type: model.ChangeInsert, New: newRaw})
	require.NoError(t, err)
	assert.Nil(t, ins.Old)

	_, err = Decode[model.Clinic](model.ChangeEvent{Type: model.ChangeUpdate, New: []byte(`{"current_number":"five"}`)})
	assert.Error(t, err)
}

func TestDecodePatch(t *testing.T) {
	p, err := DecodePatch[model.DisplayConfigPatch](model.ChangeEvent{
		Patch: []byte(`{"font_scale":4}`),
		New:   []byte(`{"font_scale":4,"columns":3}`),
	})
	require.NoError(t, err)
	require.NotNil(t, p.FontScale)
	assert.Equal(t, 4.0, *p.FontScale)
	assert.Nil(t, p.Columns, "patch must not widen to the full row")

	full, err := DecodePatch[model.DisplayConfigPatch](model.ChangeEvent{New: []byte(`{"columns":3}`)})
	require.NoError(t, err)
	require.NotNil(t, full.Columns)
	assert.Equal(t, 3, *full.Columns)
}
