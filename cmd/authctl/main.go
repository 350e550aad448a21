// Command authctl performs account administration against the same database
// and ledger as the server.
//
//	authctl deactivate <email>
//	authctl activate <email>
//	authctl logout-all <email>
//	authctl purge
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AntonTsoy/auth-service/internal/db"
	"github.com/AntonTsoy/auth-service/internal/logging"
	"github.com/AntonTsoy/auth-service/internal/token"
	"github.com/AntonTsoy/auth-service/internal/user"
	"github.com/AntonTsoy/auth-service/pkg/config"
)

var errUsage = errors.New("usage: authctl [-migrate] deactivate|activate|logout-all <email> | purge")

func main() {
	migrate := flag.Bool("migrate", false, "apply pending migrations before running the command")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), errUsage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.LogLevel, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *migrate, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		log.Error("authctl failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, migrate bool, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	pg, err := db.NewPostgresDB(ctx, cfg.DatabaseURL, cfg.DBOpTimeout)
	if err != nil {
		return err
	}
	defer pg.Close()
	if migrate {
		if err := db.Migrate(ctx, pg); err != nil {
			return err
		}
	}

	ledger, closeLedger, err := db.NewLedger(ctx, cfg, pg)
	if err != nil {
		return err
	}
	defer closeLedger()

	return execute(ctx, commandDeps{
		users:  user.NewUserRepository(pg, cfg.DBOpTimeout),
		ledger: ledger,
		log:    log,
		out:    os.Stdout,
		now:    time.Now,
	}, args)
}

type commandDeps struct {
	users  user.Store
	ledger token.Ledger
	log    *slog.Logger
	out    io.Writer
	now    func() time.Time
}

func execute(ctx context.Context, d commandDeps, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "purge":
		if len(rest) != 0 {
			return errUsage
		}
		n, err := d.ledger.PurgeExpired(ctx, d.now())
		if err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		fmt.Fprintf(d.out, "purged %d expired refresh tokens\n", n)
		return nil
	case "activate", "deactivate", "logout-all":
		if len(rest) != 1 {
			return errUsage
		}
	default:
		return errUsage
	}

	u, err := d.users.FindByEmail(ctx, rest[0])
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fmt.Errorf("%s: no user with email %q", cmd, user.NormalizeEmail(rest[0]))
		}
		return fmt.Errorf("%s: %w", cmd, err)
	}

	switch cmd {
	case "activate", "deactivate":
		active := cmd == "activate"
		if err := d.users.SetActive(ctx, u.ID, active); err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		d.log.Info("account status changed", "user_id", u.ID, "active", active)
		fmt.Fprintf(d.out, "%s: active=%t\n", u.Email, active)
	case "logout-all":
		n, err := d.ledger.RevokeAllForUser(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		d.log.Info("refresh tokens revoked", "user_id", u.ID, "revoked", n)
		fmt.Fprintf(d.out, "%s: revoked %d refresh tokens\n", u.Email, n)
	}
	return nil
}
