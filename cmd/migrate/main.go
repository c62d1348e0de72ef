package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/joho/godotenv"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

var errUsage = errors.New("usage")

// schemaCommands need a live database.
var schemaCommands = map[string]func(context.Context, *migrate.Migrator, options) error{
	"up":     func(ctx context.Context, m *migrate.Migrator, _ options) error { return m.Up(ctx) },
	"down":   func(ctx context.Context, m *migrate.Migrator, _ options) error { return m.Down(ctx) },
	"redo":   func(ctx context.Context, m *migrate.Migrator, _ options) error { return m.Redo(ctx) },
	"status": func(ctx context.Context, m *migrate.Migrator, _ options) error { return m.Status(ctx) },
	"version": func(ctx context.Context, m *migrate.Migrator, o options) error {
		if o.version == "" {
			current, err := m.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Println("current version:", current)
			return nil
		}
		return m.To(ctx, o.version)
	},
}

func main() {
	var o options
	flag.StringVar(&o.cmd, "cmd", "up", "migration command: up|down|redo|status|version|create|validate")
	flag.StringVar(&o.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&o.name, "name", "", "migration name (for create)")
	flag.StringVar(&o.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version; empty prints the current one")
	flag.Parse()

	if err := run(context.Background(), o); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
		}
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", o.cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	// create and validate never touch the database
	switch o.cmd {
	case "create":
		if o.name == "" {
			return fmt.Errorf("%w: -name is required", errUsage)
		}
		path, err := migrate.NewSQLFile(o.dir, o.name, time.Now().UTC())
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.CheckDir(o.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	command, ok := schemaCommands[o.cmd]
	if !ok {
		return fmt.Errorf("%w: unknown -cmd %q", errUsage, o.cmd)
	}

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": o.cmd, "dir": o.dir, "driver": cfg.DB.Driver})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extract sql.DB: %w", err)
	}
	m, err := migrate.NewMigrator(sqlDB, o.dir, migrate.DialectFor(cfg.DB))
	if err != nil {
		return err
	}

	started := time.Now()
	if err := command(ctx, m, o); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		return err
	}
	logg.Info(logg.WithField(ctx, "duration_ms", time.Since(started).Milliseconds()), "migrate.done")
	return nil
}
