package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/db"
	"github.com/sokohub/sokohub-backend/pkg/logger"
	"github.com/sokohub/sokohub-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|redo|status|version|create|validate")
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	fsys := migrate.Embedded()
	if *dir != "" {
		fsys = os.DirFS(*dir)
	}

	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, *name)
		if err != nil {
			exitf("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.Validate(fsys); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exitf("load config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	if err := run(ctx, cfg, logg, fsys, *cmd, *version); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration complete")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, fsys fs.FS, cmd, version string) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	migrator, err := migrate.New(sqlDB, fsys)
	if err != nil {
		return err
	}

	switch cmd {
	case "up":
		applied, err := migrator.Up(ctx)
		if err == nil {
			logg.Info(logg.WithField(ctx, "versions", applied), "applied migrations")
		}
		return err
	case "down":
		v, err := migrator.Down(ctx)
		if err == nil {
			logg.Info(logg.WithField(ctx, "version", v), "rolled back migration")
		}
		return err
	case "redo":
		_, err := migrator.Redo(ctx)
		return err
	case "status":
		return printStatus(ctx, os.Stdout, migrator)
	case "version":
		if version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrator.MigrateTo(ctx, version)
	}
	return fmt.Errorf("unknown -cmd value %q", cmd)
}

func printStatus(ctx context.Context, out io.Writer, migrator *migrate.Migrator) error {
	statuses, err := migrator.Status(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	return tw.Flush()
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
