package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/referral-service/internal/auth"
	"github.com/spec-kit/referral-service/internal/config"
	"github.com/spec-kit/referral-service/internal/observability"
	"github.com/spec-kit/referral-service/internal/persistence"
	"github.com/spec-kit/referral-service/internal/service"
	"github.com/spec-kit/referral-service/internal/worker"
)

const usage = `usage: maintenance [flags] <command> [args]

commands:
  expire-referrals            cancel referrals stuck in "Reunião Realizada" past the max age
  backfill-status-dates       stamp lastStatusChangeAt on referrals that have none
  hash-password <secret>      print a bcrypt digest for seeding accounts
  upgrade-legacy-passwords    re-hash every plaintext credential
`

var errUsage = errors.New("invalid usage")

type env struct {
	cfg    *config.Config
	logger *zap.Logger
	out    io.Writer
	stores func(ctx context.Context) (persistence.Stores, func(), error)
}

func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the command")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	e := env{cfg: cfg, logger: logger, out: os.Stdout, stores: openStores(cfg, logger)}
	if err := run(ctx, e, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		logger.Error("maintenance command failed", zap.Error(err))
		os.Exit(1)
	}
}

func openStores(cfg *config.Config, logger *zap.Logger) func(ctx context.Context) (persistence.Stores, func(), error) {
	return func(ctx context.Context) (persistence.Stores, func(), error) {
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return persistence.Stores{}, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if pg.Enabled() && cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				pg.Close()
				return persistence.Stores{}, nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		stores := persistence.OpenStores(pg)
		if stores.Memory {
			logger.Warn("POSTGRES_DSN not set; running against an empty in-memory store")
		}
		return stores, pg.Close, nil
	}
}

func run(ctx context.Context, e env, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "hash-password":
		if len(args) != 2 || args[1] == "" {
			return errUsage
		}
		digest, err := auth.HashPassword(args[1], e.cfg.Auth.BcryptCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, digest)
		return nil
	case "expire-referrals", "backfill-status-dates", "upgrade-legacy-passwords":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	if len(args) != 1 {
		return errUsage
	}

	stores, closeStores, err := e.stores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	switch args[0] {
	case "expire-referrals":
		job := worker.NewStatusExpiryJob(stores.Referrals, nil, nil, e.logger, worker.StatusExpiryConfig{
			MaxAgeMonths: e.cfg.StatusExpiry.MaxAgeMonths,
		}, nil)
		modified, err := job.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "expired %d referral(s)\n", modified)
	case "backfill-status-dates":
		referrals := service.NewReferralService(stores.Referrals, nil, e.logger, nil)
		modified, err := referrals.BackfillStatusDates(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "backfilled %d referral(s)\n", modified)
	case "upgrade-legacy-passwords":
		users := service.NewUserService(e.cfg.Auth, stores.Users, e.logger, nil)
		upgraded, err := users.UpgradeLegacyCredentials(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "upgraded %d credential(s)\n", upgraded)
	}
	return nil
}
