package lms

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Courses lists the active courses of the session's student.
func (f *Fetcher) Courses(ctx context.Context, sess Session) ([]Course, error) {
	return run(ctx, f, sess, call[Course]{
		op:       "courses",
		resource: "/courses",
		primary: func(ctx context.Context, sess Session) ([]Course, error) {
			query := url.Values{
				"per_page":         {"50"},
				"enrollment_state": {"active"},
				"include[]":        {"term", "course_image"},
			}
			return getList(ctx, f, sess, "courses", "/api/v1/courses", query, apiCourse.course)
		},
		fallback: f.scrapeCourses,
	})
}

// Modules lists the modules of a course in display order.
func (f *Fetcher) Modules(ctx context.Context, sess Session, courseID int64) ([]Module, error) {
	path := fmt.Sprintf("/courses/%d/modules", courseID)
	return run(ctx, f, sess, call[Module]{
		op:       "modules",
		resource: path,
		primary: func(ctx context.Context, sess Session) ([]Module, error) {
			query := url.Values{
				"per_page":  {"100"},
				"include[]": {"items"},
			}
			return getList(ctx, f, sess, "modules", "/api/v1"+path, query, apiModule.module)
		},
		fallback: func(ctx context.Context, sess Session) ([]Module, error) {
			return f.scrapeModules(ctx, sess, courseID)
		},
	})
}

// ModuleItems lists the items of one module.
func (f *Fetcher) ModuleItems(ctx context.Context, sess Session, courseID, moduleID int64) ([]ModuleItem, error) {
	path := fmt.Sprintf("/courses/%d/modules/%d/items", courseID, moduleID)
	return run(ctx, f, sess, call[ModuleItem]{
		op:       "module_items",
		resource: path,
		primary: func(ctx context.Context, sess Session) ([]ModuleItem, error) {
			query := url.Values{"per_page": {"100"}}
			return getList(ctx, f, sess, "module_items", "/api/v1"+path, query, apiModuleItem.item)
		},
		fallback: func(ctx context.Context, sess Session) ([]ModuleItem, error) {
			return f.scrapeModuleItems(ctx, sess, courseID, moduleID)
		},
	})
}

// Assignments lists the assignments of a course.
func (f *Fetcher) Assignments(ctx context.Context, sess Session, courseID int64) ([]Assignment, error) {
	path := fmt.Sprintf("/courses/%d/assignments", courseID)
	return run(ctx, f, sess, call[Assignment]{
		op:       "assignments",
		resource: path,
		primary: func(ctx context.Context, sess Session) ([]Assignment, error) {
			query := url.Values{
				"per_page":  {"100"},
				"include[]": {"submission"},
			}
			return getList(ctx, f, sess, "assignments", "/api/v1"+path, query, apiAssignment.assignment)
		},
		fallback: func(ctx context.Context, sess Session) ([]Assignment, error) {
			return f.scrapeAssignments(ctx, sess, courseID)
		},
	})
}

// BuildCorpus counts the modules and assignments of a course. It does not
// fetch or index their content.
func (f *Fetcher) BuildCorpus(ctx context.Context, sess Session, courseID int64) (CorpusSummary, error) {
	modules, assignments, err := f.courseDocuments(ctx, sess, courseID, "corpus")
	if err != nil {
		return CorpusSummary{}, err
	}

	summary := CorpusSummary{
		CourseID:    courseID,
		Modules:     len(modules),
		Assignments: len(assignments),
	}
	summary.DocumentsIndexed = summary.Modules + summary.Assignments
	f.logger.Info("built course corpus", "course_id", courseID, "documents", summary.DocumentsIndexed)
	return summary, nil
}

// MaxSearchResults caps the results of SearchCourse.
const MaxSearchResults = 10

// SearchCourse matches query terms against module and assignment titles. It
// is a title search, not a content search. A blank query matches nothing.
// Results are ordered by score, then modules before assignments in course
// order.
func (f *Fetcher) SearchCourse(ctx context.Context, sess Session, courseID int64, query string) ([]SearchResult, error) {
	terms := strings.Fields(strings.ToLower(query))
	if !sess.Authenticated {
		return nil, unauthenticated("search")
	}
	if len(terms) == 0 {
		return []SearchResult{}, nil
	}
	modules, assignments, err := f.courseDocuments(ctx, sess, courseID, "search")
	if err != nil {
		return nil, err
	}

	results := []SearchResult{}
	add := func(id int64, title, typ string) {
		lower := strings.ToLower(title)
		matched := 0
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matched++
			}
		}
		if matched > 0 {
			results = append(results, SearchResult{ID: id, Title: title, Type: typ, Score: float64(matched) / float64(len(terms))})
		}
	}
	for _, m := range modules {
		add(m.ID, m.Name, "module")
	}
	for _, a := range assignments {
		add(a.ID, a.Name, "assignment")
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > MaxSearchResults {
		results = results[:MaxSearchResults]
	}
	return results, nil
}

// courseDocuments fetches modules and assignments concurrently. The first
// failure cancels the other fetch.
func (f *Fetcher) courseDocuments(ctx context.Context, sess Session, courseID int64, op string) ([]Module, []Assignment, error) {
	if !sess.Authenticated {
		return nil, nil, unauthenticated(op)
	}

	var modules []Module
	var assignments []Assignment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		modules, err = f.Modules(gctx, sess, courseID)
		return err
	})
	g.Go(func() (err error) {
		assignments, err = f.Assignments(gctx, sess, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return modules, assignments, nil
}
