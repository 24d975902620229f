// Package lmstools exposes LMS operations as assistant tools.
package lmstools

import (
	"context"
	"fmt"

	"github.com/flitsinc/go-lms/lms"
	"github.com/flitsinc/go-lms/tools"
)

// Authenticator logs a student in.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (lms.Session, error)
}

// Fetcher reads student resources for a session.
type Fetcher interface {
	Courses(ctx context.Context, sess lms.Session) ([]lms.Course, error)
	Modules(ctx context.Context, sess lms.Session, courseID int64) ([]lms.Module, error)
	ModuleItems(ctx context.Context, sess lms.Session, courseID, moduleID int64) ([]lms.ModuleItem, error)
	Assignments(ctx context.Context, sess lms.Session, courseID int64) ([]lms.Assignment, error)
	SearchCourse(ctx context.Context, sess lms.Session, courseID int64, query string) ([]lms.SearchResult, error)
	BuildCorpus(ctx context.Context, sess lms.Session, courseID int64) (lms.CorpusSummary, error)
}

type credentialsParams struct {
	Username string `json:"username" description:"LMS username or email address"`
	Password string `json:"password" description:"LMS password"`
}

type noParams struct{}

type courseParams struct {
	CourseID int64 `json:"course_id" description:"ID of the course" minimum:"1"`
}

type moduleParams struct {
	CourseID int64 `json:"course_id" description:"ID of the course" minimum:"1"`
	ModuleID int64 `json:"module_id" description:"ID of the module" minimum:"1"`
}

type searchParams struct {
	CourseID int64  `json:"course_id" description:"ID of the course" minimum:"1"`
	Query    string `json:"query" description:"Words to look for in module and assignment titles"`
}

type sessionStatus struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity,omitempty"`
}

// New returns the toolbox of LMS tools. Fetch tools act for the session in
// holder, which authenticate_student and logout update.
func New(auth Authenticator, fetcher Fetcher, holder *SessionHolder) *tools.Toolbox {
	return tools.Box(
		tools.Func(
			"Authenticate student",
			"Log in to the LMS with a student's username and password. Must be called before any other LMS tool unless the server was started with an access token.",
			"authenticate_student",
			func(r tools.Runner, p credentialsParams) tools.Result {
				r.Report("Logging in as " + p.Username)
				// A failed login must not leave an earlier student's session active.
				holder.Clear()
				sess, err := auth.Authenticate(r.Context(), p.Username, p.Password)
				if err != nil {
					return failure("Authentication failed", err)
				}
				holder.Set(sess)
				return tools.SuccessWithText(
					fmt.Sprintf("Successfully authenticated as %s. You can now access your courses.", sess.Identity),
					sessionStatus{Authenticated: true, Identity: sess.Identity},
				)
			},
		),
		tools.Func(
			"Log out",
			"Forget the current LMS session.",
			"logout",
			func(r tools.Runner, p noParams) tools.Result {
				holder.Clear()
				return tools.SuccessWithText("Logged out.", sessionStatus{})
			},
		),
		tools.Func(
			"Session status",
			"Report whether a student is logged in and as whom.",
			"session_status",
			func(r tools.Runner, p noParams) tools.Result {
				sess := holder.Get()
				status := sessionStatus{Authenticated: sess.Authenticated, Identity: sess.Identity}
				if !sess.Authenticated {
					return tools.SuccessWithText("Not authenticated.", status)
				}
				return tools.SuccessWithText("Authenticated as "+sess.Identity+".", status)
			},
		),
		tools.Func(
			"List courses",
			"List the student's active courses.",
			"get_student_courses",
			func(r tools.Runner, p noParams) tools.Result {
				courses, err := fetcher.Courses(r.Context(), holder.Get())
				if err != nil {
					return failure("Could not list courses", err)
				}
				return tools.SuccessWithText(formatCourses(courses), courses)
			},
		),
		tools.Func(
			"List modules",
			"List the modules of a course in display order.",
			"get_course_modules",
			func(r tools.Runner, p courseParams) tools.Result {
				modules, err := fetcher.Modules(r.Context(), holder.Get(), p.CourseID)
				if err != nil {
					return failure("Could not list modules", err)
				}
				return tools.SuccessWithText(formatModules(p.CourseID, modules), modules)
			},
		),
		tools.Func(
			"List module items",
			"List the pages, assignments, files and other items of a module.",
			"get_module_items",
			func(r tools.Runner, p moduleParams) tools.Result {
				items, err := fetcher.ModuleItems(r.Context(), holder.Get(), p.CourseID, p.ModuleID)
				if err != nil {
					return failure("Could not list module items", err)
				}
				return tools.SuccessWithText(formatModuleItems(p.ModuleID, items), items)
			},
		),
		tools.Func(
			"List assignments",
			"List the assignments of a course with due dates and points.",
			"get_course_assignments",
			func(r tools.Runner, p courseParams) tools.Result {
				assignments, err := fetcher.Assignments(r.Context(), holder.Get(), p.CourseID)
				if err != nil {
					return failure("Could not list assignments", err)
				}
				return tools.SuccessWithText(formatAssignments(p.CourseID, assignments), assignments)
			},
		),
		tools.Func(
			"Search course",
			"Find modules and assignments of a course whose titles contain the query words. Matches titles only, not page bodies.",
			"search_course_content",
			func(r tools.Runner, p searchParams) tools.Result {
				results, err := fetcher.SearchCourse(r.Context(), holder.Get(), p.CourseID, p.Query)
				if err != nil {
					return failure("Could not search course", err)
				}
				return tools.SuccessWithText(formatSearchResults(p.Query, results), results)
			},
		),
		tools.Func(
			"Build course corpus",
			"Count the modules and assignments of a course as documents for later retrieval.",
			"build_course_corpus",
			func(r tools.Runner, p courseParams) tools.Result {
				r.Report(fmt.Sprintf("Building corpus for course %d", p.CourseID))
				summary, err := fetcher.BuildCorpus(r.Context(), holder.Get(), p.CourseID)
				if err != nil {
					return failure("Could not build corpus", err)
				}
				return tools.SuccessWithText(formatCorpus(summary), summary)
			},
		),
	)
}

// failure labels an error result with a hint when the caller has to log in
// first.
func failure(label string, err error) tools.Result {
	if lms.KindOf(err) == lms.KindUnauthenticated {
		label = "Not authenticated, call authenticate_student first"
	}
	return tools.ErrorWithLabel(label, err)
}
