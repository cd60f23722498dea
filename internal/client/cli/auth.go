package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/dulo/internal/client/client"
	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/client/services"
	"github.com/dmitrijs2005/dulo/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for the account fields and creates the account. The
// fields are validated locally before anything is sent.
func (a *App) Register(ctx context.Context) error {
	var req models.RegisterRequest
	for _, f := range []struct {
		prompt string
		dst    *string
	}{
		{"Enter full name", &req.FullName},
		{"Enter username", &req.Username},
		{"Enter email", &req.Email},
	} {
		v, err := getSimpleText(a.reader, f.prompt, a.out.w)
		if err != nil {
			return err
		}
		*f.dst = v
	}

	password, err := getPassword(a.out.w)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	req.Password = string(password)

	res, err := a.authService.Register(ctx, req)
	if err != nil {
		return err
	}

	a.out.ok("%s", orDefault(res.Message, "Registration successful"))
	if res.EmailSent {
		a.out.hint("Check %s for the verification link, then run 'verify <token>'.", req.Email)
	}
	return nil
}

// Login signs in with the username or email given as argument or prompted.
func (a *App) Login(ctx context.Context, args []string) error {
	user := strings.Join(args, " ")
	if user == "" {
		var err error
		if user, err = getSimpleText(a.reader, "Enter username or email", a.out.w); err != nil {
			return err
		}
	}

	password, err := getPassword(a.out.w)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	res, err := a.authService.Login(ctx, user, string(password))
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			return fmt.Errorf("server unavailable, try again later: %w", err)
		}
		return err
	}

	a.chatService.Invalidate()
	name := res.User.DisplayName()
	if name == "" {
		name = user
	}
	a.out.ok("Welcome, %s!", name)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	err := a.authService.Logout(ctx)
	a.chatService.Invalidate()
	if err != nil {
		a.out.hint("Server logout failed (%s); local session cleared.", err)
		return nil
	}
	a.out.ok("Logged out")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	u := a.authService.CurrentUser(ctx)
	if u == nil {
		a.out.println("Signed in (profile not cached)")
		return nil
	}
	printUser(a.out, u)
	return nil
}

// Profile shows the cached profile, or updates the full name when one is
// given.
func (a *App) Profile(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.WhoAmI(ctx)
	}

	u, err := a.authService.UpdateProfile(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	a.out.ok("Profile updated")
	printUser(a.out, u)
	return nil
}

func (a *App) Verify(ctx context.Context, args []string) error {
	if len(args) != 1 {
		a.out.println("Usage: verify <token>")
		return nil
	}
	msg, err := a.authService.VerifyEmail(ctx, args[0])
	if err != nil {
		return err
	}
	a.out.ok("%s", msg)
	return nil
}

// Resend asks for another verification email. Without an argument the
// signed-in user's address is used.
func (a *App) Resend(ctx context.Context, args []string) error {
	email := strings.Join(args, "")
	if email == "" {
		if u := a.authService.CurrentUser(ctx); u != nil {
			email = u.Email
		}
	}
	if email == "" {
		a.out.println("Usage: resend <email>")
		return nil
	}

	res, err := a.authService.ResendVerification(ctx, email)
	if err != nil {
		return err
	}
	a.out.ok("%s", orDefault(res.Message, "Verification email sent"))
	return nil
}

func printUser(p *printer, u *models.StoredUser) {
	if u.FullName != "" {
		p.printf("Name:     %s\n", u.FullName)
	}
	if u.Username != "" {
		p.printf("Username: %s\n", u.Username)
	}
	if u.Email != "" {
		p.printf("Email:    %s\n", u.Email)
		p.printf("Avatar:   %s\n", services.GravatarURL(u.Email, 0))
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
