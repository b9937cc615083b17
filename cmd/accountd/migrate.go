// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accountd/internal/config"
	"github.com/holomush/accountd/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd(opts *rootOptions, deps *ServeDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL schema migrations.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")

	withMigrator := func(fn func(cmd *cobra.Command, m Migrator, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			d := deps.withDefaults()
			url, err := databaseURL(cmd, opts)
			if err != nil {
				return err
			}
			m, err := d.MigratorFactory(url)
			if err != nil {
				return err
			}
			defer closeMigrator(slog.Default(), m)
			return fn(cmd, m, args)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations applied")
			return nil
		}),
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (one step by default, --all for every step)",
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			}
			if err := m.Steps(-steps); err != nil {
				return err
			}
			cmd.Printf("Rolled back %d migration(s)\n", steps)
			return nil
		}),
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	down.Flags().Bool("all", false, "roll back every migration")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current schema version and pending migrations",
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, _ []string) error {
			st, err := m.Status()
			if err != nil {
				return err
			}
			printStatus(cmd, st)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Set the schema version without running migrations",
		Long:  `Set the recorded schema version and clear the dirty flag. Use after fixing a failed migration by hand.`,
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m Migrator, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
			}
			if err := m.Force(v); err != nil {
				return err
			}
			cmd.Printf("Forced schema version %d\n", v)
			return nil
		}),
	})

	return cmd
}

// databaseURL resolves the URL from --database-url, then the config layers.
func databaseURL(cmd *cobra.Command, opts *rootOptions) (string, error) {
	if url, _ := cmd.Flags().GetString("database-url"); url != "" {
		return url, nil
	}
	path, err := config.ResolvePath(opts.configFile)
	if err != nil {
		return "", err
	}
	cfg, err := config.Load(path, nil)
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code(config.CodeInvalid).With("key", "database.url").
			Errorf("database url is required (--database-url, config file or %s)", config.EnvDatabaseURL)
	}
	return cfg.Database.URL, nil
}

func printStatus(cmd *cobra.Command, st store.Status) {
	if current, ok := st.Current(); ok {
		cmd.Printf("Version: %d (%s)\n", current.Version, current.Name)
	} else {
		cmd.Printf("Version: %d\n", st.Version)
	}
	if st.Dirty {
		cmd.Println("Dirty: yes (fix the failed migration, then run 'migrate force')")
	}
	cmd.Printf("Applied: %d\n", len(st.Applied))
	if len(st.Pending) == 0 {
		cmd.Println("Pending: none")
		return
	}
	cmd.Printf("Pending: %d\n", len(st.Pending))
	for _, m := range st.Pending {
		cmd.Printf("  %06d %s\n", m.Version, m.Name)
	}
}

func closeMigrator(logger *slog.Logger, m Migrator) {
	if err := m.Close(); err != nil {
		logger.Warn("error closing migrator", "error", err)
	}
}
