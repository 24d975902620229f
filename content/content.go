package content

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Type string

const (
	TypeText Type = "text"
	TypeJSON Type = "json"
)

type Item interface {
	Type() Type
}

type Text struct {
	Text string `json:"text"`
}

func (t *Text) Type() Type {
	return TypeText
}

type JSON struct {
	Data json.RawMessage `json:"data"`
}

func (j *JSON) Type() Type {
	return TypeJSON
}

type Content []Item

// FromAny marshals the given value to JSON and returns a new JSON content item
// with the marshalled JSON data.
func FromAny(value any) (Content, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return FromRawJSON(data), nil
}

// FromRawJSON returns a new JSON content item with the given raw JSON data.
func FromRawJSON(data json.RawMessage) Content {
	return Content{
		&JSON{Data: data},
	}
}

// FromText returns a new content item with the given text.
func FromText(text string) Content {
	return Content{
		&Text{Text: text},
	}
}

// Textf returns a new content item with the provided formatted text.
func Textf(format string, args ...any) Content {
	return FromText(fmt.Sprintf(format, args...))
}

// FromTextAndAny returns a text item followed by a JSON item holding value.
// Display surfaces show the text; programmatic callers read the JSON.
func FromTextAndAny(text string, value any) (Content, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return Content{
		&Text{Text: text},
		&JSON{Data: data},
	}, nil
}

// Append adds the text to the last content item if it's a text item, otherwise
// it adds a new text item to the end of the list.
func (c *Content) Append(text string) {
	if l := len(*c); l > 0 {
		if tc, ok := (*c)[l-1].(*Text); ok {
			tc.Text += text
			return
		}
	}
	*c = append(*c, &Text{Text: text})
}

// Strings renders every item as a string. JSON items are rendered as their
// raw JSON text.
func (c Content) Strings() []string {
	out := make([]string, 0, len(c))
	for _, item := range c {
		switch v := item.(type) {
		case *Text:
			out = append(out, v.Text)
		case *JSON:
			out = append(out, string(v.Data))
		}
	}
	return out
}

// String joins all text items, skipping JSON items.
func (c Content) String() string {
	var sb strings.Builder
	for _, item := range c {
		if t, ok := item.(*Text); ok {
			sb.WriteString(t.Text)
		}
	}
	return sb.String()
}

// MarshalJSON implements the json.Marshaler interface for Content.
func (c Content) MarshalJSON() ([]byte, error) {
	items := make([]map[string]any, len(c))
	for i, item := range c {
		// First marshal the concrete item
		itemData, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal item: %w", err)
		}

		var itemMap map[string]any
		if err := json.Unmarshal(itemData, &itemMap); err != nil {
			return nil, fmt.Errorf("failed to process item: %w", err)
		}

		itemMap["type"] = item.Type()
		items[i] = itemMap
	}

	return json.Marshal(items)
}

// UnmarshalJSON implements the json.Unmarshaler interface for Content.
func (c *Content) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	result := make(Content, 0, len(items))
	for _, itemData := range items {
		var typeContainer struct {
			Type Type `json:"type"`
		}
		if err := json.Unmarshal(itemData, &typeContainer); err != nil {
			return fmt.Errorf("failed to extract item type: %w", err)
		}

		var item Item
		switch typeContainer.Type {
		case TypeText:
			item = &Text{}
		case TypeJSON:
			item = &JSON{}
		default:
			return fmt.Errorf("unknown content item type: %q", typeContainer.Type)
		}

		if err := json.Unmarshal(itemData, item); err != nil {
			return fmt.Errorf("failed to unmarshal %q item: %w", typeContainer.Type, err)
		}

		result = append(result, item)
	}

	*c = result
	return nil
}
