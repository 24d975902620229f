package lmstools

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flitsinc/go-lms/lms"
)

func formatCourses(courses []lms.Course) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your courses (%d total):\n", len(courses))
	for _, c := range courses {
		code := c.Code
		if code == "" {
			code = "N/A"
		}
		fmt.Fprintf(&b, "\n- %s (%s) - ID: %d", c.Name, code, c.ID)
	}
	return b.String()
}

func formatModules(courseID int64, modules []lms.Module) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Modules of course %d (%d total):\n", courseID, len(modules))
	for _, m := range modules {
		fmt.Fprintf(&b, "\n- %s (Position: %d) - ID: %d", m.Name, m.Position, m.ID)
		if m.State != "" {
			fmt.Fprintf(&b, " [%s]", m.State)
		}
	}
	return b.String()
}

func formatModuleItems(moduleID int64, items []lms.ModuleItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Items of module %d (%d total):\n", moduleID, len(items))
	for _, it := range items {
		typ := string(it.Type)
		if typ == "" {
			typ = "Unknown"
		}
		fmt.Fprintf(&b, "\n- [%s] %s - ID: %d", typ, it.Title, it.ID)
		switch {
		case it.PageURL != "":
			fmt.Fprintf(&b, " (page: %s)", it.PageURL)
		case it.AssignmentID != 0:
			fmt.Fprintf(&b, " (assignment: %d)", it.AssignmentID)
		case it.FileID != 0:
			fmt.Fprintf(&b, " (file: %d)", it.FileID)
		}
	}
	return b.String()
}

func formatAssignments(courseID int64, assignments []lms.Assignment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assignments of course %d (%d total):\n", courseID, len(assignments))
	for _, a := range assignments {
		due := "No due date"
		if a.DueAt != nil {
			due = a.DueAt.UTC().Format(time.RFC3339)
		}
		points := "-"
		if a.PointsPossible != nil {
			points = strconv.FormatFloat(*a.PointsPossible, 'f', -1, 64)
		}
		fmt.Fprintf(&b, "\n- %s - Due: %s - Points: %s", a.Name, due, points)
	}
	return b.String()
}

func formatCorpus(s lms.CorpusSummary) string {
	return fmt.Sprintf("Indexed %d documents for course %d (%d modules, %d assignments).",
		s.DocumentsIndexed, s.CourseID, s.Modules, s.Assignments)
}

func formatSearchResults(query string, results []lms.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for '%s'.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for '%s' (%d found):\n", query, len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "\n- %s - %s (Relevance: %.2f)", r.Title, r.Type, r.Score)
	}
	return b.String()
}
