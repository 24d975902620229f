package login

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/flitsinc/go-lms/lms"
)

// Form logs in without a browser by fetching the login page, copying its
// hidden fields (such as the CSRF token) and posting the form.
type Form struct {
	baseURL   string
	transport http.RoundTripper
	userAgent string
}

func NewForm(baseURL string) *Form {
	return &Form{
		baseURL:   baseURL,
		transport: http.DefaultTransport,
		userAgent: "go-lms/1.0",
	}
}

func (f *Form) WithTransport(rt http.RoundTripper) *Form {
	f.transport = rt
	return f
}

func (f *Form) Start(ctx context.Context) (lms.LoginHandle, error) {
	if _, err := url.Parse(f.baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("could not create cookie jar: %w", err)
	}
	return &formHandle{
		baseURL:   f.baseURL,
		userAgent: f.userAgent,
		client:    &http.Client{Jar: jar, Transport: f.transport},
	}, nil
}

type formHandle struct {
	baseURL   string
	userAgent string
	client    *http.Client

	// Set by SubmitCredentials.
	finalURL *url.URL
	doc      *goquery.Document
}

func (h *formHandle) get(ctx context.Context, target string) (*http.Response, *goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	return h.do(req)
}

func (h *formHandle) do(req *http.Request) (*http.Response, *goquery.Document, error) {
	req.Header.Set("User-Agent", h.userAgent)
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", req.URL.Path, err)
	}
	return resp, doc, nil
}

func (h *formHandle) SubmitCredentials(ctx context.Context, username, password string) error {
	page := loginURL(h.baseURL)
	resp, doc, err := h.get(ctx, page)
	if err != nil {
		return fmt.Errorf("could not open login page: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("could not open login page: %s", resp.Status)
	}

	form := doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("#"+usernameFieldID).Length() > 0
	}).First()
	if form.Length() == 0 {
		return fmt.Errorf("no login form on %s", resp.Request.URL.Path)
	}

	values := url.Values{}
	form.Find("input[type=hidden]").Each(func(_ int, s *goquery.Selection) {
		if name, ok := s.Attr("name"); ok {
			value, _ := s.Attr("value")
			values.Set(name, value)
		}
	})
	userName := inputName(form, usernameFieldID, usernameFieldName)
	passName := inputName(form, passwordFieldID, passwordFieldName)
	values.Set(userName, username)
	values.Set(passName, password)

	action, _ := form.Attr("action")
	target, err := resp.Request.URL.Parse(action)
	if err != nil {
		return fmt.Errorf("invalid login form action %q: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(values.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, doc, err = h.do(req)
	if err != nil {
		return fmt.Errorf("could not submit login form: %w", err)
	}
	h.finalURL = resp.Request.URL
	h.doc = doc
	return nil
}

func inputName(form *goquery.Selection, id, fallback string) string {
	if name, ok := form.Find("#" + id).Attr("name"); ok && name != "" {
		return name
	}
	return fallback
}

// WaitForOutcome inspects the page the form submission ended on. The form
// flow has nothing to wait for, so the timeout only matters to Browser.
func (h *formHandle) WaitForOutcome(ctx context.Context, _ time.Duration) (lms.LoginOutcome, error) {
	if h.finalURL == nil {
		return lms.LoginOutcome{}, fmt.Errorf("credentials were not submitted")
	}
	if err := ctx.Err(); err != nil {
		return lms.LoginOutcome{}, err
	}
	outcome := lms.LoginOutcome{URL: h.finalURL.String()}
	if !loggedInURL(outcome.URL) && h.doc.Find("#"+dashboardLinkID).Length() == 0 {
		return outcome, nil
	}

	base, err := url.Parse(h.baseURL)
	if err != nil {
		return lms.LoginOutcome{}, err
	}
	outcome.Success = true
	outcome.Cookies = map[string]string{}
	for _, c := range h.client.Jar.Cookies(base) {
		outcome.Cookies[c.Name] = c.Value
	}
	return outcome, nil
}

func (h *formHandle) Stop() error {
	h.client.CloseIdleConnections()
	return nil
}
