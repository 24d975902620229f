package lmstools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/flitsinc/go-lms/lms"
	"github.com/flitsinc/go-lms/mcp"
)

const (
	profileURI   = "canvas://student/profile"
	courseURIPre = "canvas://course/"
	jsonMimeType = "application/json"
)

// Resources exposes the student profile and, once logged in, one resource
// per course. It implements mcp.ResourceProvider.
type Resources struct {
	fetcher Fetcher
	holder  *SessionHolder
	logger  *slog.Logger
}

func NewResources(fetcher Fetcher, holder *SessionHolder) *Resources {
	return &Resources{fetcher: fetcher, holder: holder, logger: slog.Default()}
}

func (r *Resources) WithLogger(logger *slog.Logger) *Resources {
	r.logger = logger
	return r
}

// ListResources always lists the profile. Courses are listed only for an
// authenticated session; a failed course fetch leaves just the profile.
func (r *Resources) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	resources := []mcp.Resource{{
		URI:         profileURI,
		Name:        "Student Profile",
		Description: "Login state of the current student",
		MimeType:    jsonMimeType,
	}}

	sess := r.holder.Get()
	if !sess.Authenticated {
		return resources, nil
	}
	courses, err := r.fetcher.Courses(ctx, sess)
	if err != nil {
		r.logger.Warn("failed to list course resources", "error", err)
		return resources, nil
	}
	for _, c := range courses {
		code := c.Code
		if code == "" {
			code = "N/A"
		}
		resources = append(resources, mcp.Resource{
			URI:         courseURIPre + strconv.FormatInt(c.ID, 10),
			Name:        "Course: " + c.Name,
			Description: "Canvas course " + code,
			MimeType:    jsonMimeType,
		})
	}
	return resources, nil
}

type courseResource struct {
	Course  lms.Course   `json:"course"`
	Modules []lms.Module `json:"modules"`
}

// ReadResource returns the profile as session status JSON, or a course with
// its modules.
func (r *Resources) ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	sess := r.holder.Get()
	if uri == profileURI {
		return jsonContents(uri, sessionStatus{Authenticated: sess.Authenticated, Identity: sess.Identity})
	}

	rest, ok := strings.CutPrefix(uri, courseURIPre)
	if !ok {
		return nil, mcp.ErrResourceNotFound
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id < 1 {
		return nil, mcp.ErrResourceNotFound
	}

	courses, err := r.fetcher.Courses(ctx, sess)
	if err != nil {
		return nil, err
	}
	for _, c := range courses {
		if c.ID != id {
			continue
		}
		modules, err := r.fetcher.Modules(ctx, sess, id)
		if err != nil {
			return nil, err
		}
		return jsonContents(uri, courseResource{Course: c, Modules: modules})
	}
	return nil, mcp.ErrResourceNotFound
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resource %s: %w", uri, err)
	}
	return []mcp.ResourceContents{{URI: uri, MimeType: jsonMimeType, Text: string(data)}}, nil
}
