package login

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/flitsinc/go-lms/lms"
)

const pollInterval = 250 * time.Millisecond

// Browser logs in by driving a headless Chromium through playwright. The
// playwright driver and browser binaries must be installed, otherwise Start
// fails and authentication reports an automation setup failure.
type Browser struct {
	baseURL           string
	headless          bool
	navigationTimeout time.Duration
}

func NewBrowser(baseURL string) *Browser {
	return &Browser{
		baseURL:           baseURL,
		headless:          true,
		navigationTimeout: 30 * time.Second,
	}
}

// WithHeadless shows the browser window when set to false.
func (b *Browser) WithHeadless(headless bool) *Browser {
	b.headless = headless
	return b
}

func (b *Browser) WithNavigationTimeout(timeout time.Duration) *Browser {
	b.navigationTimeout = timeout
	return b
}

// Start launches playwright, a browser and a fresh browser context.
func (b *Browser) Start(ctx context.Context) (lms.LoginHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.headless),
		Args:     []string{"--no-sandbox", "--disable-dev-shm-usage", "--disable-gpu"},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	bctx, err := browser.NewContext()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	page.SetDefaultTimeout(float64(b.navigationTimeout.Milliseconds()))
	return &browserHandle{
		baseURL: b.baseURL,
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    page,
	}, nil
}

type browserHandle struct {
	baseURL string
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func (h *browserHandle) SubmitCredentials(ctx context.Context, username, password string) error {
	if _, err := h.page.Goto(loginURL(h.baseURL)); err != nil {
		return fmt.Errorf("could not open login page: %w", err)
	}
	if err := h.page.Locator("#" + usernameFieldID).Fill(username); err != nil {
		return fmt.Errorf("could not fill username: %w", err)
	}
	if err := h.page.Locator("#" + passwordFieldID).Fill(password); err != nil {
		return fmt.Errorf("could not fill password: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.page.Locator(submitSelector).First().Click(); err != nil {
		return fmt.Errorf("could not submit login form: %w", err)
	}
	return nil
}

// WaitForOutcome polls the page until a logged-in URL or the dashboard link
// appears, or until timeout.
func (h *browserHandle) WaitForOutcome(ctx context.Context, timeout time.Duration) (lms.LoginOutcome, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if h.loggedIn() {
			cookies, err := h.context.Cookies()
			if err != nil {
				return lms.LoginOutcome{}, fmt.Errorf("could not read cookies: %w", err)
			}
			bag := make(map[string]string, len(cookies))
			for _, c := range cookies {
				bag[c.Name] = c.Value
			}
			return lms.LoginOutcome{Success: true, URL: h.page.URL(), Cookies: bag}, nil
		}
		select {
		case <-ctx.Done():
			return lms.LoginOutcome{URL: h.page.URL()}, nil
		case <-deadline.C:
			return lms.LoginOutcome{URL: h.page.URL()}, nil
		case <-ticker.C:
		}
	}
}

func (h *browserHandle) loggedIn() bool {
	if loggedInURL(h.page.URL()) {
		return true
	}
	n, err := h.page.Locator("#" + dashboardLinkID).Count()
	return err == nil && n > 0
}

func (h *browserHandle) Stop() error {
	var firstErr error
	if err := h.browser.Close(); err != nil {
		firstErr = fmt.Errorf("could not close browser: %w", err)
	}
	if err := h.pw.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("could not stop playwright: %w", err)
	}
	return firstErr
}
