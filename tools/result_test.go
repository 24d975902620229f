package tools

import (
	"errors"
	"strings"
	"testing"

	"github.com/flitsinc/go-lms/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringerStruct struct {
	Value string
}

func (s stringerStruct) String() string {
	return "StringerLabel: " + s.Value
}

func TestSuccess(t *testing.T) {
	t.Run("With Stringer", func(t *testing.T) {
		res := Success(stringerStruct{Value: "Test"})
		assert.NoError(t, res.Error())
		assert.Equal(t, "StringerLabel: Test", res.Label())
		assert.JSONEq(t, `{"Value":"Test"}`, string(extractJSONFromResult(t, res)))
	})

	t.Run("Without Stringer", func(t *testing.T) {
		res := Success(map[string]int{"count": 5})
		assert.NoError(t, res.Error())
		assert.Equal(t, "Success", res.Label())
	})

	t.Run("With Marshal Error", func(t *testing.T) {
		res := Success(struct{ C chan int }{C: make(chan int)})
		require.Error(t, res.Error())
		assert.Equal(t, "Error (Success)", res.Label())
		assert.Contains(t, string(extractJSONFromResult(t, res)), "failed to marshal success result to JSON")
	})
}

func TestSuccessWithText(t *testing.T) {
	res := SuccessWithText("Course Modules (2 total):\n\n- Week 1\n- Week 2", []string{"Week 1", "Week 2"})
	require.NoError(t, res.Error())
	assert.Equal(t, "Course Modules (2 total):", res.Label())

	c := res.Content()
	require.Len(t, c, 2)
	text, ok := c[0].(*content.Text)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(text.Text, "Course Modules"))
	assert.JSONEq(t, `["Week 1","Week 2"]`, string(extractJSONFromResult(t, res)))
}

func TestSuccessfLongLabelIsTruncated(t *testing.T) {
	res := Successf("%s", strings.Repeat("x", 120))
	assert.Len(t, res.Label(), 80)
	assert.True(t, strings.HasSuffix(res.Label(), "..."))
	assert.Len(t, res.Content().String(), 120)
}

func TestErrorWithLabel(t *testing.T) {
	res := ErrorWithLabel("Fetch failed", errors.New("fallback_exhausted: both paths failed"))
	assert.Equal(t, "Fetch failed", res.Label())
	assert.EqualError(t, res.Error(), "fallback_exhausted: both paths failed")
	assert.JSONEq(t, `{"error":"fallback_exhausted: both paths failed"}`, string(extractJSONFromResult(t, res)))

	res = Errorf("boom %d", 1)
	assert.Equal(t, "Error: boom 1", res.Label())

	assert.Panics(t, func() { ErrorWithLabel("x", nil) })
}
