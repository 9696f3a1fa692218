package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/eaxy/eaxy/cmd/eaxyctl/cli"
	"github.com/eaxy/eaxy/internal/app"
	"github.com/eaxy/eaxy/internal/auth"
	jobmetrics "github.com/eaxy/eaxy/internal/jobs"
	"github.com/eaxy/eaxy/internal/ledger"
	"github.com/eaxy/eaxy/internal/platform/db"
	"github.com/eaxy/eaxy/jobs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 3 {
		printUsage()
		return errors.New("command required")
	}
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	group, command, args := os.Args[1], os.Args[2], os.Args[3:]
	switch group + " " + command {
	case "account add":
		return runAccountAdd(ctx, cfg, args)
	case "jobs trigger":
		return runJobsTrigger(ctx, cfg, args)
	case "jobs stats":
		return runJobsStats(ctx, cfg)
	case "backup run":
		return runBackup(ctx, cfg, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %q", group+" "+command)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: eaxyctl <group> <command> [flags]

Commands:
  account add    Provision an account (--identity, --pin, --role, --office)
  jobs trigger   Enqueue a job: backup [--office ...] or cleanup
  jobs stats     Show default queue statistics
  backup run     Snapshot offices to BACKUP_DIR without the queue [--office ...]
`)
}

func runAccountAdd(ctx context.Context, cfg *app.Config, args []string) error {
	var opts cli.AccountAddOptions
	flagSet := pflag.NewFlagSet("account add", pflag.ContinueOnError)
	flagSet.StringVar(&opts.Identity, "identity", "", "login name")
	flagSet.StringVar(&opts.PIN, "pin", "", "secret PIN")
	flagSet.StringVar(&opts.Role, "role", string(auth.RoleUser), "admin or user")
	flagSet.StringVar(&opts.Office, "office", "", "office the account belongs to")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	opts.Stdout = os.Stdout

	pool, err := db.Connect(ctx, cfg.PGDSN, db.RetryPolicy{Attempts: 1}, nil)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	service := auth.NewService(auth.ServiceParams{Repo: auth.NewRepository(pool)})
	return cli.AddAccount(ctx, service, opts)
}

func runJobsTrigger(ctx context.Context, cfg *app.Config, args []string) error {
	var offices []string
	flagSet := pflag.NewFlagSet("jobs trigger", pflag.ContinueOnError)
	flagSet.StringSliceVar(&offices, "office", nil, "office to back up (repeatable, default all)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return errors.New("jobs trigger: exactly one job name required")
	}

	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer jobsCLI.Close()
	info, err := jobsCLI.Trigger(ctx, flagSet.Arg(0), offices)
	if err != nil {
		return err
	}
	fmt.Println(cli.FormatTaskInfo(info))
	return nil
}

func runJobsStats(ctx context.Context, cfg *app.Config) error {
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer jobsCLI.Close()
	stats, err := jobsCLI.InspectQueue(ctx)
	if err != nil {
		return err
	}
	fmt.Println(stats)
	return nil
}

func runBackup(ctx context.Context, cfg *app.Config, args []string) error {
	var offices []string
	dir := cfg.BackupDir
	flagSet := pflag.NewFlagSet("backup run", pflag.ContinueOnError)
	flagSet.StringSliceVar(&offices, "office", nil, "office to back up (repeatable, default all)")
	flagSet.StringVar(&dir, "dir", dir, "target directory")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	location, err := cfg.Location()
	if err != nil {
		return err
	}
	pool, err := db.Connect(ctx, cfg.PGDSN, db.RetryPolicy{Attempts: 1}, nil)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	service := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(pool),
		Logger: logger,
		Config: ledger.ServiceConfig{DefaultCurrency: cfg.DefaultCurrency, Location: location},
	})
	job := jobs.NewBackupJob(service, dir, logger, jobmetrics.NewMetrics(nil), nil)
	return cli.RunBackup(ctx, job, offices, os.Stdout)
}
