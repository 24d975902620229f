package lms

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

var (
	courseHrefPattern     = regexp.MustCompile(`/courses/(\d+)`)
	pageHrefPattern       = regexp.MustCompile(`/pages/([^/?#]+)`)
	assignmentHrefPattern = regexp.MustCompile(`/assignments/(\d+)`)
	fileHrefPattern       = regexp.MustCompile(`/files/(\d+)`)
	moduleIDPattern       = regexp.MustCompile(`^context_module_(\d+)$`)
	moduleItemIDPattern   = regexp.MustCompile(`context_module_item_(\d+)`)
	pointsPattern         = regexp.MustCompile(`(\d+(?:\.\d+)?)`)
)

// Display formats Canvas uses for due dates when no machine-readable
// timestamp is present.
var dueDateLayouts = []string{
	time.RFC3339,
	"Jan 2, 2006 at 3:04pm",
	"Jan 2, 2006 3:04pm",
	"January 2, 2006 at 3:04pm",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
}

// itemTypeClasses maps the class a module item row carries to its type.
var itemTypeClasses = []struct {
	class string
	typ   ItemType
}{
	{"wiki_page", ItemPage},
	{"assignment", ItemAssignment},
	{"attachment", ItemFile},
	{"discussion_topic", ItemDiscussion},
	{"quiz", ItemQuiz},
	{"external_url", ItemExternalURL},
	{"context_external_tool", ItemExternalTool},
	{"context_module_sub_header", ItemSubHeader},
}

// scrape visits one human-facing page with the session credentials. Callers
// register their element callbacks in setup. Each call uses its own
// collector so cookies never leak between sessions.
func (f *Fetcher) scrape(ctx context.Context, sess Session, path string, setup func(c *colly.Collector)) error {
	if err := f.wait(ctx); err != nil {
		return err
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.timeout)
	c.WithTransport(f.transport())

	page := f.resolve(path, nil).String()
	if err := c.SetCookies(page, sess.cookieList()); err != nil {
		return fmt.Errorf("failed to set session cookies: %w", err)
	}
	c.OnRequest(func(r *colly.Request) {
		if sess.AccessToken != "" {
			r.Headers.Set("Authorization", "Bearer "+sess.AccessToken)
		}
	})
	setup(c)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Visit(page); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (f *Fetcher) scrapeCourses(ctx context.Context, sess Session) ([]Course, error) {
	var courses []Course
	err := f.scrape(ctx, sess, "/dashboard", func(c *colly.Collector) {
		c.OnHTML("div.ic-DashboardCard", func(e *colly.HTMLElement) {
			course := Course{EnrollmentState: "active"}
			if m := courseHrefPattern.FindStringSubmatch(e.ChildAttr("a.ic-DashboardCard__link", "href")); m != nil {
				course.ID, _ = strconv.ParseInt(m[1], 10, 64)
			}
			course.Name = firstText(e.DOM, ".ic-DashboardCard__header-title", ".ic-DashboardCard__header_hero")
			course.Code = firstText(e.DOM, ".ic-DashboardCard__header-subtitle", ".ic-DashboardCard__header_term")
			courses = append(courses, course)
		})
	})
	return courses, err
}

// scrapeModules reads module cards in document order. A card without a
// context_module_N element id gets its 1-based position as id.
func (f *Fetcher) scrapeModules(ctx context.Context, sess Session, courseID int64) ([]Module, error) {
	var modules []Module
	err := f.scrape(ctx, sess, fmt.Sprintf("/courses/%d/modules", courseID), func(c *colly.Collector) {
		c.OnHTML("div.context_module", func(e *colly.HTMLElement) {
			position := e.Index + 1
			id, ok := moduleElementID(e.Attr("id"))
			if !ok {
				id = int64(position)
			}
			modules = append(modules, Module{
				ID:       id,
				Name:     firstText(e.DOM, ".module_name", ".ig-header .name"),
				Position: position,
				State:    "active",
			})
		})
	})
	return modules, err
}

// scrapeModuleItems reads the items of one module from the modules page. The
// module is found by its element id. Position matching applies only to a card
// without an element id, whose id scrapeModules synthesized.
func (f *Fetcher) scrapeModuleItems(ctx context.Context, sess Session, courseID, moduleID int64) ([]ModuleItem, error) {
	var module *goquery.Selection
	err := f.scrape(ctx, sess, fmt.Sprintf("/courses/%d/modules", courseID), func(c *colly.Collector) {
		c.OnHTML("div.context_module", func(e *colly.HTMLElement) {
			id, ok := moduleElementID(e.Attr("id"))
			switch {
			case ok && id == moduleID:
				module = e.DOM
			case !ok && int64(e.Index+1) == moduleID && module == nil:
				module = e.DOM
			}
		})
	})
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, nil
	}

	var items []ModuleItem
	module.Find("li.context_module_item").Each(func(i int, s *goquery.Selection) {
		items = append(items, parseModuleItem(i, s))
	})
	return items, nil
}

func moduleElementID(attr string) (int64, bool) {
	m := moduleIDPattern.FindStringSubmatch(attr)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	return id, err == nil
}

func parseModuleItem(index int, s *goquery.Selection) ModuleItem {
	item := ModuleItem{ID: int64(index + 1)}
	if id, ok := s.Attr("id"); ok {
		if m := moduleItemIDPattern.FindStringSubmatch(id); m != nil {
			item.ID, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}
	item.Title = firstText(s, ".ig-title", ".item_name a.title", ".title")

	for _, tc := range itemTypeClasses {
		if s.HasClass(tc.class) {
			item.Type = tc.typ
			break
		}
	}

	href, _ := s.Find("a[href]").First().Attr("href")
	if m := pageHrefPattern.FindStringSubmatch(href); m != nil {
		if item.Type == "" {
			item.Type = ItemPage
		}
		if item.Type == ItemPage {
			item.PageURL = m[1]
		}
	}
	if m := assignmentHrefPattern.FindStringSubmatch(href); m != nil {
		if item.Type == "" {
			item.Type = ItemAssignment
		}
		if item.Type == ItemAssignment {
			item.AssignmentID, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}
	if m := fileHrefPattern.FindStringSubmatch(href); m != nil {
		if item.Type == "" {
			item.Type = ItemFile
		}
		if item.Type == ItemFile {
			item.FileID, _ = strconv.ParseInt(m[1], 10, 64)
		}
	}
	return item
}

func (f *Fetcher) scrapeAssignments(ctx context.Context, sess Session, courseID int64) ([]Assignment, error) {
	var assignments []Assignment
	err := f.scrape(ctx, sess, fmt.Sprintf("/courses/%d/assignments", courseID), func(c *colly.Collector) {
		c.OnHTML("tr.assignment, li.assignment", func(e *colly.HTMLElement) {
			link := e.DOM.Find("a.assignment_link, a.ig-title").First()
			a := Assignment{Name: strings.TrimSpace(link.Text())}
			if href, ok := link.Attr("href"); ok {
				if m := assignmentHrefPattern.FindStringSubmatch(href); m != nil {
					a.ID, _ = strconv.ParseInt(m[1], 10, 64)
				}
			}
			a.DueAt = parseDueDate(e.DOM.Find("td.due, .due_date_display, .assignment-date-due").First())
			if m := pointsPattern.FindString(firstText(e.DOM, "td.points", ".points_possible", ".js-score")); m != "" {
				if points, err := strconv.ParseFloat(m, 64); err == nil {
					a.PointsPossible = &points
				}
			}
			assignments = append(assignments, a)
		})
	})
	return assignments, err
}

func parseDueDate(s *goquery.Selection) *time.Time {
	if s.Length() == 0 {
		return nil
	}
	if dt, ok := s.Find("time[datetime]").Attr("datetime"); ok {
		if t, err := time.Parse(time.RFC3339, dt); err == nil {
			return &t
		}
	}
	text := strings.Join(strings.Fields(s.Text()), " ")
	text = strings.TrimSpace(strings.TrimPrefix(text, "Due"))
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}

// firstText returns the trimmed text of the first selector that matches a
// non-empty element.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}
