package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/dulo/internal/client/models"
)

// Theme prints the colour theme, or stores and applies a new one.
func (a *App) Theme(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.out.printf("Theme: %s\n", a.prefs.Theme(ctx))
		return nil
	}

	t, ok := models.ParseTheme(args[0])
	if !ok {
		return fmt.Errorf("unknown theme %q: use light, dark or system", args[0])
	}
	if err := a.prefs.SaveTheme(ctx, t); err != nil {
		return err
	}
	a.out.setTheme(t)
	a.out.ok("Theme set to %s", t)
	return nil
}
