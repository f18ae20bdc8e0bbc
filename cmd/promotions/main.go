package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/sokohub/sokohub-backend/internal/promotions"
	"github.com/sokohub/sokohub-backend/pkg/config"
	"github.com/sokohub/sokohub-backend/pkg/db"
	"github.com/sokohub/sokohub-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "promotions"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "list", "promotion command: add|list|remove")
	day := flag.String("day", "", "promotion day (YYYY-MM-DD); for list, the first day shown")
	description := flag.String("description", "", "description for -cmd=add")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "promotions",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	svc, err := promotions.NewService(promotions.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to build promotions service", err)
		os.Exit(1)
	}

	if err := run(ctx, svc, os.Stdout, *cmd, *day, *description, time.Now()); err != nil {
		logg.Error(ctx, "promotion command failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc promotions.Service, out io.Writer, cmd, rawDay, description string, now time.Time) error {
	switch cmd {
	case "add":
		day, err := promotions.ParseDay(rawDay)
		if err != nil {
			return err
		}
		promo, err := svc.Add(ctx, day, description)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "scheduled promotion on %s\n", promo.Day.Format(promotions.DayLayout))
		return nil
	case "remove":
		day, err := promotions.ParseDay(rawDay)
		if err != nil {
			return err
		}
		if err := svc.Remove(ctx, day); err != nil {
			return err
		}
		fmt.Fprintf(out, "removed promotion on %s\n", day.Format(promotions.DayLayout))
		return nil
	case "list":
		from := now
		if rawDay != "" {
			day, err := promotions.ParseDay(rawDay)
			if err != nil {
				return err
			}
			from = day
		}
		rows, err := svc.List(ctx, from)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DAY\tDESCRIPTION")
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%s\n", row.Day.Format(promotions.DayLayout), row.Description)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown -cmd value: %s", cmd)
	}
}
