package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/dulo/internal/client/client"
	"github.com/dmitrijs2005/dulo/internal/client/config"
	"github.com/dmitrijs2005/dulo/internal/client/guard"
	"github.com/dmitrijs2005/dulo/internal/client/models"
	"github.com/dmitrijs2005/dulo/internal/client/refresher"
	"github.com/dmitrijs2005/dulo/internal/client/repositories/jobs"
	"github.com/dmitrijs2005/dulo/internal/client/services"
	"github.com/dmitrijs2005/dulo/internal/client/session"
	"github.com/dmitrijs2005/dulo/internal/client/storage"
	"github.com/dmitrijs2005/dulo/internal/logging"
)

// idleResume is how long the REPL may wait for input before the next
// command triggers a token check, like a browser tab becoming visible.
const idleResume = time.Minute

// Preferences stores UI settings.
type Preferences interface {
	Theme(ctx context.Context) models.Theme
	SaveTheme(ctx context.Context, t models.Theme) error
}

// Trigger runs an on-demand token check.
type Trigger interface {
	Trigger(ctx context.Context) bool
}

type App struct {
	config      *config.Config
	authService services.AuthService
	ocrService  services.OCRService
	chatService services.ChatService
	prefs       Preferences
	guard       *guard.Guard
	refresher   *refresher.Refresher
	trigger     Trigger
	log         logging.Logger

	reader *bufio.Reader
	out    *printer
	db     *sql.DB

	// pending is the command a guard redirect interrupted.
	pending  string
	lastSeen time.Time
	now      func() time.Time
}

// NewApp opens the local store and builds the services for cfg.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	db, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", cfg.DatabasePath, "error", err)
		return nil, err
	}

	store := session.NewStore(db, log)
	api := client.NewAPIClient(cfg.ServerBaseURL, store,
		client.WithLogger(log),
		client.WithTimeout(cfg.RequestTimeout),
		client.WithRefreshThreshold(cfg.RefreshThreshold),
	)

	var extra []storage.Sink
	if cfg.S3Bucket != "" {
		sink, err := storage.NewS3Sink(ctx, storage.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("s3 sink: %w", err)
		}
		extra = append(extra, sink)
		log.Info(ctx, "s3 sink enabled", "bucket", cfg.S3Bucket)
	}

	as := services.NewAuthService(api, store, log)
	ocr := services.NewOCRService(services.OCRConfig{
		Client:       api,
		Jobs:         jobs.NewSQLiteRepository(db),
		Owner:        store,
		DownloadDir:  cfg.DownloadDir,
		PollInterval: cfg.PollInterval,
		ExtraSinks:   extra,
		Log:          log,
	})
	cs := services.NewChatService(api, log)
	r := refresher.New(api, cfg.RefreshCheckInterval, log)

	return &App{
		config:      cfg,
		authService: as,
		ocrService:  ocr,
		chatService: cs,
		prefs:       store,
		guard:       guard.New(as, api, log),
		refresher:   r,
		trigger:     r,
		log:         log,
		reader:      bufio.NewReader(stdin),
		out:         newPrinter(stdout, store.Theme(ctx)),
		db:          db,
		now:         time.Now,
	}, nil
}

var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
)

// Run starts the background refresher and the REPL. It returns when the user
// exits or ctx is cancelled, and closes the local store.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.refresher != nil {
		go a.refresher.Run(ctx)
	}

	a.out.info("Welcome to DULO (type 'help' for commands)")
	a.lastSeen = a.now()
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.authService.IsAuthenticated(ctx)
}

// status renders the prompt suffix, e.g. "(ada dark)".
func (a *App) status(ctx context.Context) string {
	name := "guest"
	if u := a.authService.CurrentUser(ctx); u != nil {
		if n := u.Username; n != "" {
			name = n
		} else if n := u.DisplayName(); n != "" {
			name = n
		}
	} else if a.isLoggedIn(ctx) {
		name = "signed in"
	}
	return fmt.Sprintf("(%s %s)", name, a.prefs.Theme(ctx))
}

// resume runs a token check when the user comes back after idling.
func (a *App) resume(ctx context.Context) {
	now := a.now()
	idle := now.Sub(a.lastSeen) > idleResume
	a.lastSeen = now
	if idle && a.trigger != nil {
		a.trigger.Trigger(ctx)
	}
}

// authorize applies the guard for cmd and prints where the user is sent
// instead when it is denied.
func (a *App) authorize(ctx context.Context, cmd string, line string) bool {
	var d guard.Decision
	switch accessOf(cmd) {
	case accessProtected:
		d = a.guard.Protected(ctx, "/"+cmd)
	case accessPublic:
		d = a.guard.Public(ctx, "/"+cmd)
	default:
		return true
	}
	if d.Allow {
		return true
	}

	a.log.Debug(ctx, "command redirected", "command", cmd, "to", d.URL())
	switch d.Redirect {
	case guard.LoginRoute:
		a.pending = line
		a.out.hint("Please log in first (redirect %s).", d.URL())
	case guard.HomeRoute:
		a.out.hint("You are already signed in as %s. Use 'logout' to switch accounts.",
			a.authService.CurrentUser(ctx).DisplayName())
	}
	return false
}

func (a *App) takePending() string {
	p := a.pending
	a.pending = ""
	return p
}

func (a *App) report(err error) {
	a.log.Debug(context.Background(), "command failed", "error", err)
	a.out.fail(err)
}
