package content

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentMarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		want    string
	}{
		{
			name:    "simple text",
			content: FromText("hello"),
			want:    `[{"text":"hello","type":"text"}]`,
		},
		{
			name:    "json content",
			content: FromRawJSON(json.RawMessage(`{"foo":"bar"}`)),
			want:    `[{"data":{"foo":"bar"},"type":"json"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestContentUnmarshalJSON(t *testing.T) {
	t.Run("text and json", func(t *testing.T) {
		var got Content
		err := json.Unmarshal([]byte(`[{"type":"text","text":"2 courses"},{"type":"json","data":[1,2]}]`), &got)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, &Text{Text: "2 courses"}, got[0])
		jsonItem, ok := got[1].(*JSON)
		require.True(t, ok)
		assert.JSONEq(t, `[1,2]`, string(jsonItem.Data))
	})

	t.Run("unknown type", func(t *testing.T) {
		var got Content
		err := json.Unmarshal([]byte(`[{"type":"imageURL"}]`), &got)
		assert.ErrorContains(t, err, "unknown content item type")
	})
}

func TestFromTextAndAny(t *testing.T) {
	c, err := FromTextAndAny("Modules (1 total)", []map[string]any{{"id": 1}})
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, "Modules (1 total)", c.String())
	assert.Equal(t, []string{"Modules (1 total)", `[{"id":1}]`}, c.Strings())

	_, err = FromTextAndAny("bad", make(chan int))
	assert.Error(t, err)
}

func TestContentAppend(t *testing.T) {
	t.Run("Append to empty content", func(t *testing.T) {
		var c Content
		c.Append("first text")
		require.Len(t, c, 1)
		textItem, ok := c[0].(*Text)
		require.True(t, ok)
		assert.Equal(t, "first text", textItem.Text)
	})

	t.Run("Append after json item", func(t *testing.T) {
		c := FromRawJSON(json.RawMessage(`{}`))
		c.Append("text after json")
		require.Len(t, c, 2)
		textItem, ok := c[1].(*Text)
		require.True(t, ok)
		assert.Equal(t, "text after json", textItem.Text)
	})

	t.Run("Append multiple times to existing text", func(t *testing.T) {
		c := FromText("start")
		c.Append(" middle")
		c.Append(" end")
		require.Len(t, c, 1)
		assert.Equal(t, "start middle end", c.String())
	})
}
