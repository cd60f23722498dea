package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/dulo/internal/client/guard"
	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/logging"
)

type fakeAuth struct {
	user   *models.StoredUser
	authed bool

	loginUser, loginPass string
	loginErr             error
	registered           models.RegisterRequest
	registerRes          *models.RegisterResult
	registerErr          error
	logoutCalled         bool
	logoutErr            error
	profileName          string
	verifyToken          string
	resendEmail          string
}

func (f *fakeAuth) Login(_ context.Context, user, password string) (*models.LoginResult, error) {
	f.loginUser, f.loginPass = user, password
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	f.authed = true
	f.user = &models.StoredUser{Username: user, FullName: "Ada Lovelace"}
	return &models.LoginResult{AccessToken: "tok", User: f.user}, nil
}

func (f *fakeAuth) Register(_ context.Context, r models.RegisterRequest) (*models.RegisterResult, error) {
	f.registered = r
	return f.registerRes, f.registerErr
}

func (f *fakeAuth) Logout(context.Context) error {
	f.logoutCalled = true
	f.authed, f.user = false, nil
	return f.logoutErr
}

func (f *fakeAuth) UpdateProfile(_ context.Context, name string) (*models.StoredUser, error) {
	f.profileName = name
	u := *f.user
	u.FullName = name
	f.user = &u
	return &u, nil
}

func (f *fakeAuth) ResendVerification(_ context.Context, email string) (*models.MessageResult, error) {
	f.resendEmail = email
	return &models.MessageResult{Message: "Verification email sent"}, nil
}

func (f *fakeAuth) VerifyEmail(_ context.Context, token string) (string, error) {
	f.verifyToken = token
	return "Email verified successfully", nil
}

func (f *fakeAuth) CurrentUser(context.Context) *models.StoredUser { return f.user }
func (f *fakeAuth) IsAuthenticated(context.Context) bool          { return f.authed || f.user != nil }

type fakeRefresh struct {
	token string
	err   error
	calls int
}

func (f *fakeRefresh) Refresh(context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakePrefs struct{ theme models.Theme }

func (f *fakePrefs) Theme(context.Context) models.Theme {
	if f.theme == "" {
		return models.ThemeSystem
	}
	return f.theme
}

func (f *fakePrefs) SaveTheme(_ context.Context, t models.Theme) error {
	f.theme = t
	return nil
}

type fakeTrigger struct{ calls int }

func (f *fakeTrigger) Trigger(context.Context) bool { f.calls++; return true }

type testApp struct {
	*App
	auth    *fakeAuth
	ocr     *fakeOCR
	chat    *fakeChat
	prefs   *fakePrefs
	refresh *fakeRefresh
	trigger *fakeTrigger
	buf     *bytes.Buffer
}

// newTestApp builds an App over fakes; input feeds the prompts.
func newTestApp(t *testing.T, input string) *testApp {
	t.Helper()
	ta := &testApp{
		auth:    &fakeAuth{},
		ocr:     &fakeOCR{},
		chat:    &fakeChat{},
		prefs:   &fakePrefs{theme: models.ThemeLight},
		refresh: &fakeRefresh{},
		trigger: &fakeTrigger{},
		buf:     &bytes.Buffer{},
	}
	ta.App = &App{
		authService: ta.auth,
		ocrService:  ta.ocr,
		chatService: ta.chat,
		prefs:       ta.prefs,
		guard:       guard.New(ta.auth, ta.refresh, nil),
		trigger:     ta.trigger,
		log:         logging.Nop(),
		reader:      bufio.NewReader(strings.NewReader(input)),
		out:         newPrinter(ta.buf, models.ThemeLight),
		now:         time.Now,
	}
	return ta
}

func stubPassword(t *testing.T, pw string) {
	t.Helper()
	orig := getPassword
	getPassword = func(io.Writer) ([]byte, error) { return []byte(pw), nil }
	t.Cleanup(func() { getPassword = orig })
}

func silenceREPL(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	origLn, origP := printlnFn, printFn
	printlnFn = func(a ...any) (int, error) { return fmt.Fprintln(&buf, a...) }
	printFn = func(a ...any) (int, error) { return fmt.Fprint(&buf, a...) }
	t.Cleanup(func() { printlnFn, printFn = origLn, origP })
	return &buf
}
