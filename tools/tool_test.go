package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/flitsinc/go-lms/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moduleParams struct {
	CourseID int64  `json:"course_id" description:"Course ID" minimum:"1"`
	ModuleID int64  `json:"module_id" description:"Module ID" minimum:"1"`
	Filter   string `json:"filter,omitempty"`
}

// Helper to extract JSON data from result content for testing
func extractJSONFromResult(t *testing.T, r Result) json.RawMessage {
	t.Helper()
	require.NotEmpty(t, r.Content(), "Result content should not be empty")
	for _, item := range r.Content() {
		if jsonItem, ok := item.(*content.JSON); ok {
			return jsonItem.Data
		}
	}
	t.Fatal("result has no JSON content item")
	return nil
}

func echoModuleTool() Tool {
	return Func("Module items", "List module items", "get_module_items", func(r Runner, p moduleParams) Result {
		return Success(map[string]any{"course_id": p.CourseID, "module_id": p.ModuleID, "filter": p.Filter})
	})
}

func TestToolRun_CorrectData(t *testing.T) {
	result := echoModuleTool().Run(NopRunner, json.RawMessage(`{"course_id":501,"module_id":7,"filter":"pages"}`))

	require.NoError(t, result.Error())
	assert.JSONEq(t, `{"course_id":501,"module_id":7,"filter":"pages"}`, string(extractJSONFromResult(t, result)))
}

func TestToolRun_OptionalFieldAbsent(t *testing.T) {
	result := echoModuleTool().Run(NopRunner, json.RawMessage(`{"course_id":501,"module_id":7}`))

	require.NoError(t, result.Error())
	assert.JSONEq(t, `{"course_id":501,"module_id":7,"filter":""}`, string(extractJSONFromResult(t, result)))
}

func TestToolRun_MissingRequiredField(t *testing.T) {
	result := echoModuleTool().Run(NopRunner, json.RawMessage(`{"course_id":501}`))

	require.Error(t, result.Error())
	assert.Contains(t, result.Error().Error(), `missing required field: "module_id"`)
	assert.Equal(t, "Invalid arguments", result.Label())
	assert.Contains(t, string(extractJSONFromResult(t, result)), "missing required field")
}

func TestToolRun_InvalidDataType(t *testing.T) {
	result := echoModuleTool().Run(NopRunner, json.RawMessage(`{"course_id":"501","module_id":7}`))

	require.Error(t, result.Error())
	assert.Contains(t, result.Error().Error(), "type mismatch")
}

func TestToolRun_NonIntegralNumber(t *testing.T) {
	result := echoModuleTool().Run(NopRunner, json.RawMessage(`{"course_id":501.5,"module_id":7}`))

	require.Error(t, result.Error())
	assert.Contains(t, result.Error().Error(), "expected integer")
}

func TestToolRun_BelowMinimum(t *testing.T) {
	result := echoModuleTool().Run(NopRunner, json.RawMessage(`{"course_id":0,"module_id":7}`))

	require.Error(t, result.Error())
	assert.Contains(t, result.Error().Error(), "below minimum")
}

func TestToolRun_NoArguments(t *testing.T) {
	called := false
	tool := Func("Courses", "List courses", "get_student_courses", func(r Runner, p struct{}) Result {
		called = true
		return Successf("0 courses")
	})

	for _, params := range []json.RawMessage{nil, json.RawMessage(`null`), json.RawMessage(`{}`)} {
		called = false
		result := tool.Run(NopRunner, params)
		require.NoError(t, result.Error())
		assert.True(t, called)
		assert.Equal(t, "0 courses", result.Content().String())
	}
}

func TestToolFunctionReport(t *testing.T) {
	var reports []string
	r := NewRunner(context.Background(), nil, func(status string) { reports = append(reports, status) })

	tool := Func("Report Tool", "Reports progress", "report_tool", func(r Runner, p moduleParams) Result {
		r.Report("fetching")
		return Successf("done")
	})

	result := tool.Run(r, json.RawMessage(`{"course_id":1,"module_id":2}`))
	require.NoError(t, result.Error())
	assert.Equal(t, []string{"fetching"}, reports)
}

func TestFunc_PanicsOnNonStructParams(t *testing.T) {
	assert.Panics(t, func() {
		Func("Bad", "bad", "bad", func(r Runner, p string) Result { return Successf("x") })
	})
}

func TestGenerateSchema(t *testing.T) {
	schema := echoModuleTool().Schema()

	assert.Equal(t, "get_module_items", schema.Name)
	assert.Equal(t, "object", schema.Parameters.Type)
	assert.Equal(t, []string{"course_id", "module_id"}, schema.Parameters.Required)

	props := *schema.Parameters.Properties
	require.Contains(t, props, "course_id")
	assert.Equal(t, "integer", props["course_id"].Type)
	assert.Equal(t, "Course ID", props["course_id"].Description)
	require.NotNil(t, props["course_id"].Minimum)
	assert.Equal(t, 1.0, *props["course_id"].Minimum)

	data, err := json.Marshal(schema.Parameters)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type":"object",
		"properties":{
			"course_id":{"type":"integer","description":"Course ID","minimum":1},
			"module_id":{"type":"integer","description":"Module ID","minimum":1},
			"filter":{"type":"string"}
		},
		"required":["course_id","module_id"]
	}`, string(data))
}

func TestGenerateSchema_EmptyStructHasEmptyProperties(t *testing.T) {
	tool := Func("Status", "Session status", "session_status", func(r Runner, p struct{}) Result { return Successf("ok") })

	data, err := json.Marshal(tool.Schema().Parameters)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","properties":{}}`, string(data))
}
