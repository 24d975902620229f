// Package lms is a student-credential client for a Canvas-style learning
// management system. Every resource fetch tries the JSON API first and falls
// back to scraping the equivalent HTML page when the API is unavailable.
package lms

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"net/http"
	"slices"
	"time"
)

// Session is the result of an authentication attempt. It is a plain value:
// pass it to every fetch call. The zero Session is unauthenticated.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity,omitempty"`
	// Cookies is the credential bag captured after login, keyed by cookie name.
	Cookies map[string]string `json:"-"`
	// AccessToken is set for sessions created with an API access token.
	AccessToken string `json:"-"`
}

// cookieList returns the credential bag as cookies, sorted by name.
func (s Session) cookieList() []*http.Cookie {
	names := slices.Sorted(maps.Keys(s.Cookies))
	cookies := make([]*http.Cookie, 0, len(names))
	for _, name := range names {
		cookies = append(cookies, &http.Cookie{Name: name, Value: s.Cookies[name]})
	}
	return cookies
}

// fingerprint identifies the credentials of a session without exposing them.
func (s Session) fingerprint() string {
	h := sha256.New()
	h.Write([]byte(s.Identity))
	h.Write([]byte{0})
	h.Write([]byte(s.AccessToken))
	for _, c := range s.cookieList() {
		h.Write([]byte{0})
		h.Write([]byte(c.Name))
		h.Write([]byte{'='})
		h.Write([]byte(c.Value))
	}
	return hex.EncodeToString(h.Sum(nil)[:12])
}

type Course struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Code            string `json:"code"`
	EnrollmentState string `json:"enrollment_state"`
}

type Module struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	State    string `json:"state"`
}

// ItemType is the kind of content a module item points at.
type ItemType string

const (
	ItemPage         ItemType = "Page"
	ItemAssignment   ItemType = "Assignment"
	ItemFile         ItemType = "File"
	ItemDiscussion   ItemType = "Discussion"
	ItemQuiz         ItemType = "Quiz"
	ItemExternalURL  ItemType = "ExternalUrl"
	ItemExternalTool ItemType = "ExternalTool"
	ItemSubHeader    ItemType = "SubHeader"
)

// ModuleItem is an entry of a module. Only the reference field matching Type
// is set: PageURL for pages, AssignmentID for assignments, FileID for files.
type ModuleItem struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Type         ItemType `json:"type"`
	PageURL      string   `json:"page_url,omitempty"`
	AssignmentID int64    `json:"assignment_id,omitempty"`
	FileID       int64    `json:"file_id,omitempty"`
}

type Assignment struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	DueAt          *time.Time `json:"due_at"`
	PointsPossible *float64   `json:"points_possible"`
}

// CorpusSummary reports what BuildCorpus counted for a course.
type CorpusSummary struct {
	CourseID         int64 `json:"course_id"`
	Modules          int   `json:"modules"`
	Assignments      int   `json:"assignments"`
	DocumentsIndexed int   `json:"documents_indexed"`
}

// SearchResult is one module or assignment whose title matched a search.
// Score is the fraction of query terms found in the title.
type SearchResult struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}
