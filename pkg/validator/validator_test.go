package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-queue/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestValidate_DisplayConfigPatch(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(&model.DisplayConfigPatch{}))
	assert.NoError(t, v.Validate(&model.DisplayConfigPatch{
		Columns:     ptr(4),
		LayoutSplit: ptr("2/3"),
		ThemeColor:  ptr("#0f172a"),
		VideoStatus: ptr(model.VideoPause),
	}))

	err := v.Validate(&model.DisplayConfigPatch{
		Columns:     ptr(0),
		LayoutSplit: ptr("3/4"),
		ThemeColor:  ptr("navy"),
	})
	require.Error(t, err)

	fields := map[string]string{}
	for _, fe := range Describe(err) {
		fields[fe.Field] = fe.Message
	}
	assert.Equal(t, "Value must be at least 1", fields["columns"])
	assert.Equal(t, "Invalid hex color", fields["theme_color"])
	assert.Contains(t, fields["layout_split"], "1/2")
}

func TestValidate_NotificationType(t *testing.T) {
	type req struct {
		Type string `json:"type" validate:"required,notification_type"`
	}
	v := New()
	assert.NoError(t, v.Validate(req{Type: "name_call"}))

	err := v.Validate(req{Type: "broadcast"})
	require.Error(t, err)
	assert.Equal(t, []FieldError{{Field: "type", Message: "Unknown notification type"}}, Describe(err))
}

func TestDescribe_IgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, Describe(assert.AnError))
}
