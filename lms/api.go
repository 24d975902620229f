package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 10 << 20

// Canvas prefixes JSON answers to cookie-authenticated requests with this
// guard to defeat JSON hijacking.
var jsonGuard = []byte("while(1);")

// getPage performs one GET against the structured API and returns the body
// and the next page URL from the Link header, if any.
func (f *Fetcher) getPage(ctx context.Context, sess Session, op string, u *url.URL) ([]byte, *url.URL, error) {
	if err := f.wait(ctx); err != nil {
		return nil, nil, upstreamUnavailable(op, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, upstreamUnavailable(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", f.userAgent)
	for _, c := range sess.cookieList() {
		req.AddCookie(c)
	}

	resp, err := f.clientFor(sess).Do(req)
	if err != nil {
		return nil, nil, upstreamUnavailable(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, upstreamUnavailable(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, upstreamUnavailable(op, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    errorMessage(body),
		})
	}

	// A session that the API does not accept is often redirected to the
	// HTML login page, which answers 200.
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "" && !strings.Contains(mediaType, "json") {
		return nil, nil, upstreamUnavailable(op, fmt.Errorf("expected JSON from %s, got %s", resp.Request.URL.Path, mediaType))
	}

	return bytes.TrimPrefix(bytes.TrimSpace(body), jsonGuard), f.nextPage(resp.Header.Get("Link")), nil
}

// nextPage extracts the rel="next" target of a Link header. Targets on other
// hosts are ignored so credentials never leave the LMS.
func (f *Fetcher) nextPage(header string) *url.URL {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		isNext := false
		for _, param := range segments[1:] {
			param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
			if param == `rel="next"` || param == "rel=next" {
				isNext = true
			}
		}
		if !isNext {
			continue
		}
		u, err := f.baseURL.Parse(target[1 : len(target)-1])
		if err != nil || u.Host != f.baseURL.Host {
			return nil
		}
		return u
	}
	return nil
}

// getList fetches every page of a list endpoint, up to maxPages, and converts
// each wire record in server order.
func getList[W, T any](ctx context.Context, f *Fetcher, sess Session, op, path string, query url.Values, convert func(W) T) ([]T, error) {
	out := []T{}
	next := f.resolve(path, query)
	for page := 0; next != nil && page < f.maxPages; page++ {
		body, following, err := f.getPage(ctx, sess, op, next)
		if err != nil {
			return nil, err
		}
		var records []W
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, malformed(op, err)
		}
		for _, r := range records {
			out = append(out, convert(r))
		}
		next = following
	}
	return out, nil
}

// errorMessage pulls a human-readable message out of a Canvas error body:
// {"errors":[{"message":"..."}]} or {"message":"..."}.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(bytes.TrimPrefix(body, jsonGuard), &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	if len(payload.Errors) > 0 {
		return payload.Errors[0].Message
	}
	return ""
}

type apiCourse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CourseCode  string `json:"course_code"`
	Enrollments []struct {
		EnrollmentState string `json:"enrollment_state"`
	} `json:"enrollments"`
}

func (c apiCourse) course() Course {
	state := "active" // the request filters on active enrollments
	if len(c.Enrollments) > 0 && c.Enrollments[0].EnrollmentState != "" {
		state = c.Enrollments[0].EnrollmentState
	}
	return Course{ID: c.ID, Name: c.Name, Code: c.CourseCode, EnrollmentState: state}
}

type apiModule struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Position      int    `json:"position"`
	State         string `json:"state"`
	WorkflowState string `json:"workflow_state"`
}

func (m apiModule) module() Module {
	state := m.State
	if state == "" {
		state = m.WorkflowState
	}
	return Module{ID: m.ID, Name: m.Name, Position: m.Position, State: state}
}

type apiModuleItem struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Type      ItemType `json:"type"`
	PageURL   string   `json:"page_url"`
	ContentID int64    `json:"content_id"`
}

func (i apiModuleItem) item() ModuleItem {
	item := ModuleItem{ID: i.ID, Title: i.Title, Type: i.Type}
	switch i.Type {
	case ItemPage:
		item.PageURL = i.PageURL
	case ItemAssignment:
		item.AssignmentID = i.ContentID
	case ItemFile:
		item.FileID = i.ContentID
	}
	return item
}

type apiAssignment struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	DueAt          *time.Time `json:"due_at"`
	PointsPossible *float64   `json:"points_possible"`
}

func (a apiAssignment) assignment() Assignment {
	return Assignment(a)
}

type apiUser struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	LoginID      string `json:"login_id"`
	PrimaryEmail string `json:"primary_email"`
}

// AuthenticateToken creates a session from an API access token, verifying it
// against the current-user endpoint. A rejected token yields
// KindAuthenticationFailed.
func (f *Fetcher) AuthenticateToken(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, authFailed("access token is required", nil)
	}
	sess := Session{Authenticated: true, AccessToken: token}

	body, _, err := f.getPage(ctx, sess, "authenticate", f.resolve("/api/v1/users/self", nil))
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
			return Session{}, authFailed("access token rejected", httpErr)
		}
		return Session{}, err
	}
	var user apiUser
	if err := json.Unmarshal(body, &user); err != nil {
		return Session{}, malformed("authenticate", err)
	}

	sess.Identity = user.LoginID
	if sess.Identity == "" {
		sess.Identity = user.PrimaryEmail
	}
	if sess.Identity == "" {
		sess.Identity = user.Name
	}
	f.logger.Info("LMS token authentication successful", "identity", sess.Identity)
	return sess, nil
}
