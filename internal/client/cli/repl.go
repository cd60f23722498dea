package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn and printFn are test seams for REPL output.
var (
	printlnFn = fmt.Println
	printFn   = fmt.Print
)

type access int

const (
	accessOpen access = iota
	// accessPublic commands are for anonymous users only.
	accessPublic
	// accessProtected commands need a session.
	accessProtected
)

var commandAccess = map[string]access{
	"register": accessPublic,
	"login":    accessPublic,
	"logout":   accessProtected,
	"whoami":   accessProtected,
	"profile":  accessProtected,
	"scan":     accessProtected,
	"batch":    accessProtected,
	"direct":   accessProtected,
	"status":   accessProtected,
	"wait":     accessProtected,
	"download": accessProtected,
	"history":  accessProtected,
	"forget":   accessProtected,
	"chat":     accessProtected,
	"chats":    accessProtected,
	"showchat": accessProtected,
}

func accessOf(cmd string) access {
	return commandAccess[cmd]
}

const (
	helpGuest = `Available commands:
  register                          create an account
  login [username|email]            sign in
  verify <token>                    confirm an email address
  resend <email>                    send the verification email again
  theme [light|dark|system]         show or change the colour theme
  exit                              leave the program`

	helpUser = `Available commands:
  whoami                            show the signed-in user
  profile [full name]               show or update the profile
  resend [email]                    send the verification email again
  scan <file> [pdf|excel]           submit one image (--engine, --lang, --invoice, --enhanced, --no-autofix)
  batch <pdf|excel> <files...>      submit up to 100 images as one job
  direct <file> [pdf|excel]         convert one image and save the result right away
  status <job>                      show a job's status
  wait <job>                        follow a job until it finishes
  download <job...>                 save the converted file(s) (--dir)
  history [search] [--asc] [--type pdf|excel]
                                    list submitted jobs
  forget <job...>                   remove jobs from the history
  chat [chat_id]                    talk to the document assistant
  chats                             list conversations
  showchat <chat_id>                print a conversation
  theme [light|dark|system]         show or change the colour theme
  logout                            sign out
  exit                              leave the program`
)

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	authorize(ctx context.Context, cmd, line string) bool
	resume(ctx context.Context)
	takePending() string
	report(err error)

	Register(ctx context.Context) error
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Profile(ctx context.Context, args []string) error
	Verify(ctx context.Context, args []string) error
	Resend(ctx context.Context, args []string) error
	Scan(ctx context.Context, args []string) error
	Batch(ctx context.Context, args []string) error
	Direct(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Wait(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
	History(ctx context.Context, args []string) error
	Forget(ctx context.Context, args []string) error
	Chat(ctx context.Context, args []string) error
	Chats(ctx context.Context) error
	ShowChat(ctx context.Context, args []string) error
	Theme(ctx context.Context, args []string) error
}

// runREPL reads commands from reader until EOF, "exit"/"quit" or ctx
// cancellation. Each command passes the session guard before it runs;
// after a successful login the command that was redirected to login is
// replayed.
//
// Lines are read by a helper goroutine only on request, so command
// handlers can prompt on the same reader between two REPL reads.
func runREPL(ctx context.Context, a execIface, statusFn func(context.Context) string, reader *bufio.Reader) {
	type result struct {
		line string
		err  error
	}
	requests := make(chan struct{})
	results := make(chan result, 1)
	defer close(requests)

	go func() {
		for range requests {
			line, err := reader.ReadString('\n')
			results <- result{line: line, err: err}
		}
	}()

	for {
		printFn(fmt.Sprintf("dulo %s> ", statusFn(ctx)))
		requests <- struct{}{}

		var r result
		select {
		case <-ctx.Done():
			printlnFn()
			return
		case r = <-results:
		}
		if r.err != nil && r.line == "" {
			return
		}

		a.resume(ctx)
		if !dispatch(ctx, a, r.line) {
			return
		}
		if r.err != nil {
			return
		}
	}
}

// dispatch runs one command line and reports false when the REPL should stop.
func dispatch(ctx context.Context, a execIface, line string) bool {
	line = strings.TrimSpace(line)
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	switch cmd {
	case "exit", "quit":
		printlnFn("Bye!")
		return false
	case "help":
		if a.isLoggedIn(ctx) {
			printlnFn(helpUser)
		} else {
			printlnFn(helpGuest)
		}
		return true
	}

	run, known := commandFor(a, cmd)
	if !known {
		printlnFn("Unknown command:", cmd)
		return true
	}
	if !a.authorize(ctx, cmd, line) {
		return true
	}

	if err := run(ctx, args); err != nil {
		a.report(err)
		return true
	}

	if cmd == "login" {
		if pending := a.takePending(); pending != "" {
			printlnFn("Resuming:", pending)
			return dispatch(ctx, a, pending)
		}
	}
	return true
}

func commandFor(a execIface, cmd string) (func(context.Context, []string) error, bool) {
	noArgs := func(f func(context.Context) error) func(context.Context, []string) error {
		return func(ctx context.Context, _ []string) error { return f(ctx) }
	}

	switch cmd {
	case "register":
		return noArgs(a.Register), true
	case "login":
		return a.Login, true
	case "logout":
		return noArgs(a.Logout), true
	case "whoami":
		return noArgs(a.WhoAmI), true
	case "profile":
		return a.Profile, true
	case "verify":
		return a.Verify, true
	case "resend":
		return a.Resend, true
	case "scan":
		return a.Scan, true
	case "batch":
		return a.Batch, true
	case "direct":
		return a.Direct, true
	case "status":
		return a.Status, true
	case "wait":
		return a.Wait, true
	case "download":
		return a.Download, true
	case "history":
		return a.History, true
	case "forget":
		return a.Forget, true
	case "chat":
		return a.Chat, true
	case "chats":
		return noArgs(a.Chats), true
	case "showchat":
		return a.ShowChat, true
	case "theme":
		return a.Theme, true
	default:
		return nil, false
	}
}
