package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolbox_All_PreservesInsertionOrder(t *testing.T) {
	toolA := Func("A", "desc", "authenticate_student", func(r Runner, params struct{}) Result { return Successf("a") })
	toolB := Func("B", "desc", "get_student_courses", func(r Runner, params struct{}) Result { return Successf("b") })
	toolC := Func("C", "desc", "get_course_modules", func(r Runner, params struct{}) Result { return Successf("c") })

	tb := Box()
	tb.Add(toolA)
	tb.Add(toolB)
	tb.Add(toolC)

	all := tb.All()
	require.Len(t, all, 3)
	require.Equal(t, "authenticate_student", all[0].FuncName())
	require.Equal(t, "get_student_courses", all[1].FuncName())
	require.Equal(t, "get_course_modules", all[2].FuncName())
	assert.Equal(t, []string{"authenticate_student", "get_student_courses", "get_course_modules"}, tb.Names())
}

func TestToolbox_Add_DuplicatePanics(t *testing.T) {
	toolA1 := Func("A1", "desc", "dup", func(r Runner, params struct{}) Result { return Successf("1") })
	toolA2 := Func("A2", "desc", "dup", func(r Runner, params struct{}) Result { return Successf("2") })
	tb := Box(toolA1)
	require.Panics(t, func() { tb.Add(toolA2) })
	require.Panics(t, func() { tb.Add(Func("Unnamed", "desc", "", func(r Runner, params struct{}) Result { return Successf("x") })) })
}

func TestToolbox_RunSkipsCancelledCalls(t *testing.T) {
	ran := false
	tb := Box(Func("Courses", "desc", "get_student_courses", func(r Runner, params struct{}) Result {
		ran = true
		return Successf("courses")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := tb.Run(NewRunner(ctx, tb, nil), "get_student_courses", json.RawMessage(`{}`))
	require.ErrorIs(t, res.Error(), context.Canceled)
	assert.Equal(t, "Cancelled", res.Label())
	assert.False(t, ran)

	res = tb.Run(NopRunner, "get_student_courses", json.RawMessage(`{}`))
	require.NoError(t, res.Error())
	assert.True(t, ran)
}

func TestLogRunnerLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tb := Box(Func("Login", "desc", "authenticate_student", func(r Runner, params struct{}) Result {
		r.Report("Logging in as student@example.com")
		return Successf("ok")
	}))

	res := tb.Run(LogRunner(context.Background(), tb, logger, "authenticate_student"), "authenticate_student", json.RawMessage(`{}`))
	require.NoError(t, res.Error())
	assert.Contains(t, buf.String(), "tool=authenticate_student")
	assert.Contains(t, buf.String(), `status="Logging in as student@example.com"`)
}

func TestToolbox_RunUnknownTool(t *testing.T) {
	res := Box().Run(NopRunner, "nope", json.RawMessage(`{}`))
	require.Error(t, res.Error())
	assert.Contains(t, res.Error().Error(), `tool "nope" not found`)
}

func TestToolbox_NilSafe(t *testing.T) {
	var tb *Toolbox
	assert.Empty(t, tb.All())
	assert.Nil(t, tb.Get("x"))
	assert.Empty(t, tb.Names())
}
