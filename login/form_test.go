package login

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flitsinc/go-lms/lms"
)

const loginPage = `<html><body>
<form id="login_form" action="/login/canvas" method="post">
  <input type="hidden" name="authenticity_token" value="tok123">
  <input type="hidden" name="utf8" value="&#x2713;">
  <input type="text" id="pseudonym_session_unique_id" name="pseudonym_session[unique_id]">
  <input type="password" id="pseudonym_session_password" name="pseudonym_session[password]">
  <button type="submit">Log In</button>
</form>
</body></html>`

func newCanvasLogin(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/canvas", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.Method == http.MethodGet {
			http.SetCookie(w, &http.Cookie{Name: "_csrf_token", Value: "csrf", Path: "/"})
			io.WriteString(w, loginPage)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("authenticity_token") != "tok123" ||
			r.PostForm.Get("pseudonym_session[unique_id]") != "student@example.com" ||
			r.PostForm.Get("pseudonym_session[password]") != "correctpw" {
			io.WriteString(w, loginPage)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "canvas_session", Value: "abc123", Path: "/"})
		http.Redirect(w, r, "/?login_success=1", http.StatusFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("canvas_session"); err != nil {
			http.Redirect(w, r, "/login/canvas", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, `<html><body><a id="global_nav_dashboard_link" href="/">Dashboard</a></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuthenticator(driver lms.LoginDriver) *lms.Authenticator {
	return lms.NewAuthenticator(driver).
		WithOutcomeTimeout(time.Second).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFormLoginSuccess(t *testing.T) {
	srv := newCanvasLogin(t)

	sess, err := newTestAuthenticator(NewForm(srv.URL)).Authenticate(context.Background(), "student@example.com", "correctpw")
	require.NoError(t, err)
	assert.True(t, sess.Authenticated)
	assert.Equal(t, "student@example.com", sess.Identity)
	assert.Equal(t, "abc123", sess.Cookies["canvas_session"])
	assert.Equal(t, "csrf", sess.Cookies["_csrf_token"])
}

func TestFormLoginWrongPassword(t *testing.T) {
	srv := newCanvasLogin(t)

	sess, err := newTestAuthenticator(NewForm(srv.URL)).Authenticate(context.Background(), "student@example.com", "wrongpw")
	require.Error(t, err)
	assert.Equal(t, lms.KindAuthenticationFailed, lms.KindOf(err))
	assert.False(t, sess.Authenticated)
}

func TestFormLoginUnreachable(t *testing.T) {
	srv := newCanvasLogin(t)
	srv.Close()

	_, err := newTestAuthenticator(NewForm(srv.URL)).Authenticate(context.Background(), "student@example.com", "correctpw")
	assert.Equal(t, lms.KindAuthenticationFailed, lms.KindOf(err))
}

func TestFormWaitWithoutSubmit(t *testing.T) {
	handle, err := NewForm("https://learn.example.edu").Start(context.Background())
	require.NoError(t, err)
	defer handle.Stop()

	_, err = handle.WaitForOutcome(context.Background(), time.Second)
	assert.Error(t, err)
}

func TestLoggedInURL(t *testing.T) {
	assert.True(t, loggedInURL("https://learn.example.edu/dashboard"))
	assert.True(t, loggedInURL("https://learn.example.edu/courses/501"))
	assert.False(t, loggedInURL("https://learn.example.edu/login/canvas"))
	assert.False(t, loggedInURL("https://learn.example.edu/?login_success=1"))
	assert.False(t, loggedInURL("://bad"))
}
