package validator

import (
	"math"
	"testing"

	apperrors "github.com/SAP-F-2025/gradebook-service/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type itemPayload struct {
	Action   string   `json:"action" validate:"required,grade_action"`
	Category string   `json:"categoryId" validate:"required,category_code"`
	Name     *string  `json:"name" validate:"omitempty,item_name"`
	MaxScore *float64 `json:"totalScore" validate:"omitempty,max_score"`
}

func TestValidator_CustomTags(t *testing.T) {
	v := New()
	name := "Quiz 1"
	max := 50.0

	require.NoError(t, v.Validate(&itemPayload{Action: "add", Category: "WW", Name: &name, MaxScore: &max}))

	err := v.Validate(&itemPayload{Action: "archive", Category: "XX"})
	require.Error(t, err)

	errs, ok := err.(apperrors.ValidationErrors)
	require.True(t, ok)
	fields := map[string]string{}
	for _, e := range errs {
		fields[e.Field] = e.Rule
	}
	assert.Equal(t, "grade_action", fields["action"])
	assert.Equal(t, "category_code", fields["categoryId"])
}

func TestValidator_MaxScoreBounds(t *testing.T) {
	v := New()
	for _, tc := range []struct {
		value float64
		valid bool
	}{
		{100, true},
		{1000, true},
		{0.5, true},
		{0, false},
		{-1, false},
		{1000.01, false},
	} {
		score := tc.value
		err := v.Validate(&itemPayload{Action: "add", Category: "PT", MaxScore: &score})
		assert.Equal(t, tc.valid, err == nil, "max score %v", tc.value)
	}

	assert.False(t, IsValidMaxScore(math.NaN()))
	assert.False(t, IsValidMaxScore(math.Inf(1)))
}

func TestIsValidItemName(t *testing.T) {
	assert.True(t, IsValidItemName("WW 1"))
	assert.False(t, IsValidItemName("   "))
	long := make([]rune, 101)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, IsValidItemName(string(long)))
}
