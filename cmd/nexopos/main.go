package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/nexoai/pos-client/config"
	"github.com/nexoai/pos-client/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	// public commands run without building the session runtime.
	public bool
	run    commandFn
}

type commandContext struct {
	Ctx     context.Context
	Logger  *slog.Logger
	Config  config.AppConfig
	Runtime *bootstrap.Runtime
	Out     io.Writer
}

// errDenied signals a negative permission check; it maps to exit status 3.
var errDenied = errors.New("permission denied")

func main() {
	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			slog.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			slog.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger := bootstrap.InitLogger(cfg.Logging, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := run(ctx, cmd, &commandContext{Ctx: ctx, Logger: logger, Config: cfg, Out: os.Stdout}, os.Args[2:])
	switch {
	case runErr == nil:
	case errors.Is(runErr, errDenied):
		stop()
		os.Exit(3) //nolint:forbidigo // permission checks report through the exit status
	default:
		logger.ErrorContext(ctx, "command failed", "command", cmdName, "error", runErr)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

// run builds the session runtime, restores the persisted session, then runs cmd.
func run(ctx context.Context, cmd command, cc *commandContext, args []string) error {
	if cmd.public {
		return cmd.run(cc, args)
	}

	store, err := bootstrap.BuildStore(ctx, bootstrap.StoreDeps{
		Storage: cc.Config.Storage,
		Redis:   cc.Config.Redis,
		Logger:  cc.Logger,
	})
	if err != nil {
		return fmt.Errorf("build session store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			cc.Logger.WarnContext(ctx, "close session store failed", "error", cerr)
		}
	}()

	sink, err := bootstrap.BuildMetrics(cc.Config.Observability.Metrics, cc.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			cc.Logger.WarnContext(ctx, "close metrics sink failed", "error", cerr)
		}
	}()

	rt, err := bootstrap.BuildSessionRuntime(bootstrap.RuntimeDeps{
		Config:  &cc.Config,
		Store:   store,
		Metrics: sink,
		Logger:  cc.Logger,
	})
	if err != nil {
		return err
	}
	cc.Runtime = rt

	return runWithRuntime(cc, cmd, args)
}

// runWithRuntime restores the session before handing off to the command.
// A failed restore leaves the client signed out; commands decide whether
// that is fatal.
func runWithRuntime(cc *commandContext, cmd command, args []string) error {
	if err := cc.Runtime.Manager.RestoreSession(cc.Ctx); err != nil {
		cc.Logger.WarnContext(cc.Ctx, "session restore failed", "error", err)
	}
	return cmd.run(cc, args)
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in with email and password",
			run:         runLogin,
		},
		"register": {
			name:        "register",
			description: "Create a business account and sign in",
			run:         runRegister,
		},
		"logout": {
			name:        "logout",
			description: "Sign out and clear the stored session",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Show the signed-in user, role and permissions",
			run:         runWhoAmI,
		},
		"can": {
			name:        "can",
			description: "Check permissions for the signed-in user (exit 3 when denied)",
			run:         runCan,
		},
		"tabs": {
			name:        "tabs",
			description: "List the navigation tabs visible to the signed-in user",
			run:         runTabs,
		},
		"get": {
			name:        "get",
			description: "Perform an authenticated GET against the backend",
			run:         runGet,
		},
		"mock-users": {
			name:        "mock-users",
			description: "List the built-in development users (AUTH_MODE=mock)",
			public:      true,
			run:         runMockUsers,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: nexopos <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(w, "  %-12s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, s string) error {
	_, err := fmt.Fprintln(w, s)
	return err
}
