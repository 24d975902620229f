package tools

import (
	"encoding/json"
	"fmt"
)

// Toolbox is the set of tools one server exposes, keyed by function name.
// Order matters: tools/list and the CLI present tools in the order they were
// added, so login tools come before the fetch tools that need a session.
type Toolbox struct {
	tools map[string]Tool
	order []string
}

// Box returns a Toolbox holding tools in the given order.
func Box(tools ...Tool) *Toolbox {
	t := &Toolbox{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		t.Add(tool)
	}
	return t
}

// Add appends a tool. Function names are the MCP tool names, so an empty or
// repeated name panics.
func (t *Toolbox) Add(tool Tool) {
	funcName := tool.FuncName()
	if funcName == "" {
		panic("tool has no function name")
	}
	if _, ok := t.tools[funcName]; ok {
		panic(fmt.Sprintf("tool %q already exists", funcName))
	}
	t.tools[funcName] = tool
	t.order = append(t.order, funcName)
}

// All returns the tools in insertion order. A nil toolbox has none.
func (t *Toolbox) All() []Tool {
	tools := []Tool{}
	if t == nil {
		return tools
	}
	for _, name := range t.order {
		tools = append(tools, t.tools[name])
	}
	return tools
}

// Names returns the function names in insertion order.
func (t *Toolbox) Names() []string {
	if t == nil {
		return []string{}
	}
	return append([]string{}, t.order...)
}

func (t *Toolbox) Get(funcName string) Tool {
	if t == nil {
		return nil
	}
	return t.tools[funcName]
}

// Run decodes params into the named tool's parameters and runs it. A call
// whose context is already done fails without running the tool, so no LMS
// request starts for a client that has gone away.
func (t *Toolbox) Run(r Runner, funcName string, params json.RawMessage) Result {
	tool := t.Get(funcName)
	if tool == nil {
		return Error(fmt.Errorf("tool %q not found", funcName))
	}
	if err := r.Context().Err(); err != nil {
		return ErrorWithLabel("Cancelled", err)
	}
	return tool.Run(r, params)
}
