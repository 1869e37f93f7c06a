package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	environment "wb-tariffs/internal/env"
	"wb-tariffs/internal/migrations"
	"wb-tariffs/internal/seeds"
)

const usage = `usage: dbctl <command> [args]

commands:
  migrate latest        apply all pending migrations
  migrate rollback      roll back the last applied migration
  migrate list          show migrations and their state
  migrate make <name>   create a migration file for the configured driver
  seed run              apply the seed fixtures
  seed make <name>      create a seed fixture file
`

func main() {
	migrationsDir := flag.String("migrations-dir", "internal/migrations", "root of the migration sources for make")
	seedsDir := flag.String("seeds-dir", "internal/seeds/fixtures", "seed fixture directory for make")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if err := run(context.Background(), flag.Args(), *migrationsDir, *seedsDir, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "dbctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, migrationsDir, seedsDir string, out io.Writer) error {
	if len(args) < 2 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	group, action := args[0], args[1]

	// make does not touch the database
	if action == "make" {
		if len(args) < 3 || args[2] == "" {
			return fmt.Errorf("%s make: missing name", group)
		}
		return runMake(ctx, group, args[2], migrationsDir, seedsDir, out)
	}

	tooling, err := environment.SetupTooling(ctx)
	if err != nil {
		return err
	}
	defer tooling.DB.Close()

	switch group {
	case "migrate":
		m, err := migrations.New(tooling.DB.DB.DB, tooling.DB.Driver(), tooling.Logger)
		if err != nil {
			return err
		}
		return runMigrate(ctx, m, action, out)
	case "seed":
		if action != "run" {
			return fmt.Errorf("unknown seed command %q", action)
		}
		n, err := seeds.New(tooling.DB.DB, nil, tooling.Logger).Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "seeded %d rows\n", n)
		return nil
	default:
		return fmt.Errorf("unknown command %q", group)
	}
}

func runMake(ctx context.Context, group, name, migrationsDir, seedsDir string, out io.Writer) error {
	switch group {
	case "migrate":
		cfg, err := environment.LoadConfig(ctx)
		if err != nil {
			return err
		}
		dir := filepath.Join(migrationsDir, cfg.Storage.Driver)
		if err := migrations.Make(dir, name); err != nil {
			return err
		}
		fmt.Fprintf(out, "created migration %q in %s\n", name, dir)
		return nil
	case "seed":
		path, err := seeds.Make(seedsDir, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "created %s\n", path)
		return nil
	default:
		return fmt.Errorf("unknown command %q", group)
	}
}

func runMigrate(ctx context.Context, m *migrations.Migrator, action string, out io.Writer) error {
	switch action {
	case "latest":
		applied, err := m.Latest(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "applied %d migrations\n", applied)
		return nil
	case "rollback":
		rolled, err := m.Rollback(ctx)
		if err != nil {
			return err
		}
		if !rolled {
			fmt.Fprintln(out, "nothing to roll back")
			return nil
		}
		fmt.Fprintln(out, "rolled back one migration")
		return nil
	case "list":
		statuses, err := m.List(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
		for _, s := range statuses {
			state, at := "pending", "-"
			if s.Applied {
				state, at = "applied", s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, state, at, s.Path)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown migrate command %q", action)
	}
}
