// Package services contains the application services of the DULO client:
// authentication, OCR jobs and chat. They sit between the CLI and the API
// client and own the local session and history side effects.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/dulo/internal/client/client"
	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/logging"
)

// SessionStore is the part of session.Store the services need.
type SessionStore interface {
	Token(ctx context.Context) (string, time.Time, error)
	SaveToken(ctx context.Context, token string, at time.Time) error
	User(ctx context.Context) *models.StoredUser
	SaveUser(ctx context.Context, u *models.StoredUser) error
	Clear(ctx context.Context) error
}

// AuthService defines authentication operations for the CLI.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Login(ctx context.Context, users, password string) (*models.LoginResult, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResult, error)
	Logout(ctx context.Context) error
	UpdateProfile(ctx context.Context, fullName string) (*models.StoredUser, error)
	ResendVerification(ctx context.Context, email string) (*models.MessageResult, error)
	VerifyEmail(ctx context.Context, token string) (string, error)
	CurrentUser(ctx context.Context) *models.StoredUser
	IsAuthenticated(ctx context.Context) bool
}

type authService struct {
	client client.Client
	store  SessionStore
	log    logging.Logger
	now    func() time.Time
}

func NewAuthService(c client.Client, store SessionStore, log logging.Logger) AuthService {
	return &authService{client: c, store: store, log: log, now: time.Now}
}

// Login signs in with a username or email. The access token, its timestamp
// and the returned profile are persisted; the API client captures the
// refresh cookie.
func (a *authService) Login(ctx context.Context, users, password string) (*models.LoginResult, error) {
	users = strings.TrimSpace(users)
	if users == "" {
		return nil, invalid("Username or email is required")
	}
	if password == "" {
		return nil, invalid("Password is required")
	}

	req, err := client.NewJSONRequest(http.MethodPost, "/auth/login", map[string]string{
		"users":    users,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	req.Anonymous = true
	req.Credentials = true

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, explain("Login", err)
	}

	var res models.LoginResult
	if err := resp.Decode(&res); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	if res.AccessToken != "" {
		if err := a.store.SaveToken(ctx, res.AccessToken, a.now()); err != nil {
			return nil, fmt.Errorf("login: save token: %w", err)
		}
	}
	if res.User != nil {
		if err := a.store.SaveUser(ctx, res.User); err != nil {
			a.log.Warn(ctx, "failed to cache current user", "error", err)
		}
	}
	a.log.Info(ctx, "signed in", "user", res.User.DisplayName())
	return &res, nil
}

func (a *authService) Register(ctx context.Context, r models.RegisterRequest) (*models.RegisterResult, error) {
	r = NormalizeRegistration(r)
	if err := ValidateRegistration(r); err != nil {
		return nil, err
	}

	req, err := client.NewJSONRequest(http.MethodPost, "/auth/register", r)
	if err != nil {
		return nil, err
	}
	req.Anonymous = true
	req.Credentials = true

	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, explain("Register", err)
	}

	var res models.RegisterResult
	if err := resp.Decode(&res); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	a.log.Info(ctx, "registered", "username", r.Username, "email_sent", res.EmailSent)
	return &res, nil
}

// Logout tells the backend to drop the refresh cookie. The local session is
// cleared whatever the outcome.
func (a *authService) Logout(ctx context.Context) (err error) {
	defer func() {
		if cerr := a.store.Clear(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("logout: clear session: %w", cerr)
		}
	}()

	_, err = a.client.Do(ctx, &client.Request{Method: http.MethodPost, Path: "/auth/logout", Credentials: true})
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (a *authService) UpdateProfile(ctx context.Context, fullName string) (*models.StoredUser, error) {
	fullName = strings.TrimSpace(fullName)
	if err := ValidateFullName(fullName); err != nil {
		return nil, err
	}

	req, err := client.NewJSONRequest(http.MethodPut, "/auth/update-profile", map[string]string{"full_name": fullName})
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, explain("Update profile", err)
	}

	var res models.MessageResult
	if err := resp.Decode(&res); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	user := res.User
	if user == nil {
		user = a.store.User(ctx)
		if user == nil {
			user = &models.StoredUser{}
		}
		user.FullName = fullName
	}
	if err := a.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: cache user: %w", err)
	}
	return user, nil
}

func (a *authService) ResendVerification(ctx context.Context, email string) (*models.MessageResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	req, err := client.NewJSONRequest(http.MethodPost, "/auth/resend-verification", map[string]string{"email": email})
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(ctx, req)
	if err != nil {
		return nil, explain("Resend verification", err)
	}

	var res models.MessageResult
	if err := resp.Decode(&res); err != nil {
		return nil, fmt.Errorf("resend verification: %w", err)
	}
	return &res, nil
}

const defaultVerifiedMessage = "Email verified successfully"

func (a *authService) VerifyEmail(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", invalid("Verification token is required")
	}

	resp, err := a.client.Do(ctx, &client.Request{
		Method:    http.MethodGet,
		Path:      "/auth/verif-email?token=" + url.QueryEscape(token),
		Anonymous: true,
	})
	if err != nil {
		return "", explain("Verify email", err)
	}

	var res models.MessageResult
	if resp.IsJSON() {
		if err := resp.Decode(&res); err != nil {
			return "", fmt.Errorf("verify email: %w", err)
		}
	}
	if res.Message == "" {
		return defaultVerifiedMessage, nil
	}
	return res.Message, nil
}

func (a *authService) CurrentUser(ctx context.Context) *models.StoredUser {
	return a.store.User(ctx)
}

// IsAuthenticated reports whether a cached profile or an access token is
// present. It does not check the token with the backend.
func (a *authService) IsAuthenticated(ctx context.Context) bool {
	if a.store.User(ctx) != nil {
		return true
	}
	token, _, err := a.store.Token(ctx)
	if err != nil {
		a.log.Warn(ctx, "failed to read access token", "error", err)
		return false
	}
	return token != ""
}
