package tools

import (
	"encoding/json"
	"fmt"

	"github.com/flitsinc/go-lms/content"
)

// Result defines the outcome of a tool execution.
type Result interface {
	// Label returns a short single line description of the entire tool run.
	Label() string
	// Content returns the structured content of the result.
	Content() content.Content
	// Error returns the error that occurred during the tool run, if any.
	Error() error
}

type result struct {
	label   string
	content content.Content
	err     error
}

func (r *result) Label() string {
	return r.label
}

func (r *result) Content() content.Content {
	return r.content
}

func (r *result) Error() error {
	return r.err
}

func Error(err error) Result {
	return ErrorWithLabel("", err)
}

func Errorf(format string, args ...any) Result {
	return ErrorWithLabel("", fmt.Errorf(format, args...))
}

func ErrorWithLabel(label string, err error) Result {
	if err == nil {
		panic("tools: cannot create error result with nil error")
	}
	errorJSON, _ := json.Marshal(map[string]string{"error": err.Error()})
	c := content.FromRawJSON(errorJSON)
	if label == "" {
		label = fmt.Sprintf("Error: %s", err)
	}
	return &result{label, c, err}
}

// Success creates a result by marshaling the value to JSON content. It attempts
// to generate a label automatically from the value if it implements
// fmt.Stringer.
func Success(value any) Result {
	label := "Success"
	if stringer, ok := value.(fmt.Stringer); ok {
		label = shortLabel(stringer.String())
	}
	return SuccessWithLabel(label, value)
}

// SuccessWithLabel creates a result with an explicit label by marshaling the
// value to JSON content.
func SuccessWithLabel(label string, value any) Result {
	c, err := content.FromAny(value)
	if err != nil {
		return ErrorWithLabel(fmt.Sprintf("Error (%s)", label), fmt.Errorf("failed to marshal success result to JSON: %w", err))
	}
	return SuccessWithContent(label, c)
}

// SuccessWithText creates a result holding human-readable text followed by
// the JSON encoding of value. The label is derived from the text.
func SuccessWithText(text string, value any) Result {
	label := shortLabel(text)
	c, err := content.FromTextAndAny(text, value)
	if err != nil {
		return ErrorWithLabel(fmt.Sprintf("Error (%s)", label), fmt.Errorf("failed to marshal success result to JSON: %w", err))
	}
	return SuccessWithContent(label, c)
}

// Successf creates a result containing only the formatted text.
func Successf(format string, args ...any) Result {
	text := fmt.Sprintf(format, args...)
	return SuccessWithContent(shortLabel(text), content.FromText(text))
}

// SuccessWithContent creates a result with an explicit label and
// pre-constructed content.
func SuccessWithContent(label string, content content.Content) Result {
	if label == "" {
		label = "Success"
	}
	return &result{label: label, content: content, err: nil}
}

// shortLabel keeps auto-generated labels on a single short line.
func shortLabel(s string) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i]
			break
		}
	}
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}
