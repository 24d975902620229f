package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/flitsinc/go-lms/content"
	"github.com/flitsinc/go-lms/tools"
)

// fetchCmd describes a one-shot command that runs one LMS tool.
type fetchCmd struct {
	use   string
	short string
	tool  string
	// args names the positional arguments, in order.
	args []string
}

var fetchCmds = []fetchCmd{
	{"courses", "List the student's active courses", "get_student_courses", nil},
	{"modules COURSE_ID", "List the modules of a course", "get_course_modules", []string{"course_id"}},
	{"items COURSE_ID MODULE_ID", "List the items of a module", "get_module_items", []string{"course_id", "module_id"}},
	{"assignments COURSE_ID", "List the assignments of a course", "get_course_assignments", []string{"course_id"}},
	{"corpus COURSE_ID", "Count the documents of a course", "build_course_corpus", []string{"course_id"}},
}

func newFetchCmds(a *app) []*cobra.Command {
	var cmds []*cobra.Command
	for _, fc := range fetchCmds {
		var asJSON bool
		cmd := &cobra.Command{
			Use:   fc.use,
			Short: fc.short,
			Args:  cobra.ExactArgs(len(fc.args)),
			RunE: func(cmd *cobra.Command, args []string) error {
				params, err := toolArgs(fc.args, args)
				if err != nil {
					return err
				}
				b, err := a.backend(cmd.Context(), true)
				if err != nil {
					return err
				}
				defer b.Close()

				runner := tools.LogRunner(cmd.Context(), b.toolbox, a.logger, fc.tool)
				result := b.toolbox.Run(runner, fc.tool, params)
				if err := result.Error(); err != nil {
					return fmt.Errorf("%s: %w", result.Label(), err)
				}
				return printResult(cmd.OutOrStdout(), result.Content(), asJSON)
			},
		}
		cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
		cmds = append(cmds, cmd)
	}
	return cmds
}

// toolArgs turns positional ids into the tool's JSON arguments.
func toolArgs(names, values []string) (json.RawMessage, error) {
	m := make(map[string]int64, len(names))
	for i, name := range names {
		id, err := strconv.ParseInt(values[i], 10, 64)
		if err != nil || id < 1 {
			return nil, fmt.Errorf("%s must be a positive integer, got %q", name, values[i])
		}
		m[name] = id
	}
	return json.Marshal(m)
}

func printResult(w io.Writer, c content.Content, asJSON bool) error {
	for _, item := range c {
		switch v := item.(type) {
		case *content.Text:
			if !asJSON {
				if _, err := fmt.Fprintln(w, v.Text); err != nil {
					return err
				}
			}
		case *content.JSON:
			if asJSON {
				if _, err := fmt.Fprintln(w, string(v.Data)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
