package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/medforum/medforum/internal/config"
	"github.com/medforum/medforum/internal/forum"
	"github.com/medforum/medforum/internal/platform/db"
	"github.com/medforum/medforum/internal/platform/logging"
	"github.com/medforum/medforum/internal/platform/metrics"
	"github.com/medforum/medforum/internal/platform/phi"
	"github.com/medforum/medforum/internal/seed"
	"github.com/medforum/medforum/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "medforum-db",
		Short:        "Medical forum database tooling",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("metrics-file", "", "Write session metrics in Prometheus text format to this file on exit")

	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(seedCmd())
	cmd.AddCommand(healthCmd())
	cmd.AddCommand(accountsCmd())
	cmd.AddCommand(accountCmd())
	cmd.AddCommand(messagesCmd())
	cmd.AddCommand(diagnosesCmd())
	return cmd
}

// env holds everything a command needs. Close releases it in reverse order.
type env struct {
	logClose io.Closer
	driver   db.Driver
	fk       bool
	busy     time.Duration
	pool     *sql.DB
	store    *forum.Store
	registry *prometheus.Registry
	metrics  string
	migrator *db.Migrator
}

func setup(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logClose, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDev(),
		File:        cfg.LogFile,
		Stdout:      cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	driver, _ := cfg.Driver()
	isolation, _ := cfg.Isolation()

	pool, err := db.NewPool(ctx, driver, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logClose.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Debug().Str("driver", string(driver)).Msg("connected to database")

	fsys, err := migrations.For(driver)
	if err != nil {
		pool.Close()
		logClose.Close()
		return nil, err
	}

	codec, err := phi.NewCodec(cfg.PHIEncryptionKey, logger)
	if err != nil {
		pool.Close()
		logClose.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	sessionMetrics, err := metrics.NewSessionMetrics(registry)
	if err != nil {
		pool.Close()
		logClose.Close()
		return nil, err
	}

	metricsFile, _ := cmd.Flags().GetString("metrics-file")

	return &env{
		logClose: logClose,
		driver:   driver,
		fk:       cfg.DBForeignKeys,
		busy:     cfg.DBBusyTimeout,
		pool:     pool,
		registry: registry,
		metrics:  metricsFile,
		migrator: db.NewMigrator(pool, fsys),
		store: forum.NewStore(pool, driver, forum.Options{
			Isolation:   isolation,
			ForeignKeys: cfg.DBForeignKeys,
			BusyTimeout: cfg.DBBusyTimeout,
			OpTimeout:   cfg.DBOpTimeout,
			Codec:       codec,
			Metrics:     sessionMetrics,
			Logger:      &logger,
		}),
	}, nil
}

func (e *env) Close() error {
	var errs []error
	if e.metrics != "" {
		if err := prometheus.WriteToTextfile(e.metrics, e.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	errs = append(errs, e.pool.Close(), e.logClose.Close())
	return errors.Join(errs...)
}

// withEnv runs fn with a ready env and closes it afterwards.
func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, e.Close())
	}()
	return fn(ctx, e)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetInt("to")
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				var (
					count int
					err   error
				)
				if to > 0 {
					count, err = e.migrator.UpTo(ctx, to)
				} else {
					count, err = e.migrator.Up(ctx)
				}
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				statuses, err := e.migrator.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tAPPLIED AT")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, s.Name, status, appliedAt)
				}
				return w.Flush()
			})
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert fixture data from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			fixture, err := seed.LoadFile(file)
			if err != nil {
				return err
			}

			return withEnv(cmd, func(ctx context.Context, e *env) error {
				return e.store.WithSession(ctx, func(s *forum.Session) error {
					res, err := seed.Apply(ctx, s, fixture)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d account(s), %d message(s), %d diagnosis(es).\n",
						res.Accounts, len(res.Messages), len(res.Diagnoses))
					return nil
				})
			})
		},
	}
	cmd.Flags().String("file", "", "Path to the YAML fixture")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Ping the database and show pool statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				h := db.Check(ctx, e.pool)
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "status\t%s\n", h.Status)
				fmt.Fprintf(w, "driver\t%s\n", e.driver)
				fmt.Fprintf(w, "open\t%d\n", h.Pool.OpenConns)
				fmt.Fprintf(w, "in use\t%d\n", h.Pool.InUseConns)
				fmt.Fprintf(w, "idle\t%d\n", h.Pool.IdleConns)
				if h.Error != "" {
					fmt.Fprintf(w, "error\t%s\n", h.Error)
					if err := w.Flush(); err != nil {
						return err
					}
					return fmt.Errorf("database is %s", h.Status)
				}

				conn, err := db.Acquire(ctx, e.pool, e.driver, db.ConnOptions{ForeignKeys: e.fk, BusyTimeout: e.busy})
				if err != nil {
					return err
				}
				defer conn.Close()
				fk, err := db.ForeignKeysEnabled(ctx, conn, e.driver)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "foreign keys\t%t\n", fk)
				return w.Flush()
			})
		},
	}
}

func accountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts (public profile only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				return e.store.WithSession(ctx, func(s *forum.Session) error {
					accounts, err := s.ListAccounts(ctx)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tREGISTERED\tSPECIALITY")
					for _, a := range accounts {
						fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
							a.AccountID, a.Username, a.Role, a.RegisteredAt.UTC().Format(time.RFC3339), deref(a.Speciality))
					}
					return w.Flush()
				})
			})
		},
	}
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account <username>",
		Short: "Show one account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			restricted, _ := cmd.Flags().GetBool("restricted")
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				return e.store.WithSession(ctx, func(s *forum.Session) error {
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					if !restricted {
						p, err := s.GetPublicProfile(ctx, args[0])
						if err != nil {
							return err
						}
						if p == nil {
							return fmt.Errorf("account %q not found", args[0])
						}
						writePublic(w, p)
						return w.Flush()
					}

					a, err := s.GetAccount(ctx, args[0])
					if err != nil {
						return err
					}
					if a == nil {
						return fmt.Errorf("account %q not found", args[0])
					}
					writePublic(w, &a.Public)
					fmt.Fprintf(w, "last login\t%s\n", a.LastLogin.UTC().Format(time.RFC3339))
					fmt.Fprintf(w, "messages\t%d\n", a.MessageCount)
					fmt.Fprintf(w, "name\t%s %s\n", deref(a.Private.FirstName), deref(a.Private.LastName))
					fmt.Fprintf(w, "work address\t%s\n", deref(a.Private.WorkAddress))
					fmt.Fprintf(w, "email\t%s\n", deref(a.Private.Email))
					fmt.Fprintf(w, "phone\t%s\n", deref(a.Private.Phone))
					return w.Flush()
				})
			})
		},
	}
	cmd.Flags().Bool("restricted", false, "Include the private profile")
	return cmd
}

func writePublic(w io.Writer, p *forum.PublicProfile) {
	fmt.Fprintf(w, "id\t%d\n", p.AccountID)
	fmt.Fprintf(w, "username\t%s\n", p.Username)
	fmt.Fprintf(w, "role\t%s\n", p.Role)
	fmt.Fprintf(w, "registered\t%s\n", p.RegisteredAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "speciality\t%s\n", deref(p.Speciality))
	fmt.Fprintf(w, "picture\t%s\n", deref(p.Picture))
}

func messagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List messages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			author, _ := cmd.Flags().GetString("author")
			before, _ := cmd.Flags().GetString("before")
			after, _ := cmd.Flags().GetString("after")
			limit, _ := cmd.Flags().GetInt("limit")

			f := forum.MessageFilter{Author: author, Limit: forum.Limit(limit)}
			var err error
			if f.Before, err = parseTime(before); err != nil {
				return fmt.Errorf("--before: %w", err)
			}
			if f.After, err = parseTime(after); err != nil {
				return fmt.Errorf("--after: %w", err)
			}

			return withEnv(cmd, func(ctx context.Context, e *env) error {
				return e.store.WithSession(ctx, func(s *forum.Session) error {
					msgs, err := s.ListMessages(ctx, f)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tAUTHOR\tCREATED\tTITLE")
					for _, m := range msgs {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
							m.ID, m.Author, m.CreatedAt.UTC().Format(time.RFC3339), m.Title)
					}
					return w.Flush()
				})
			})
		},
	}
	cmd.Flags().String("author", "", "Only messages by this username")
	cmd.Flags().String("before", "", "Only messages strictly before this RFC 3339 time")
	cmd.Flags().String("after", "", "Only messages strictly after this RFC 3339 time")
	cmd.Flags().Int("limit", -1, "Maximum number of messages (-1 for all)")
	return cmd
}

func diagnosesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnoses",
		Short: "List diagnoses in id order",
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")
			author, _ := cmd.Flags().GetString("author")
			limit, _ := cmd.Flags().GetInt("limit")

			return withEnv(cmd, func(ctx context.Context, e *env) error {
				return e.store.WithSession(ctx, func(s *forum.Session) error {
					f := forum.DiagnosisFilter{MessageID: message, Limit: forum.Limit(limit)}
					if author != "" {
						id, ok, err := s.AccountID(ctx, author)
						if err != nil {
							return err
						}
						if !ok {
							return fmt.Errorf("account %q not found", author)
						}
						f.AuthorID = &id
					}

					dgs, err := s.ListDiagnoses(ctx, f)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tMESSAGE\tAUTHOR ID\tDISEASE")
					for _, d := range dgs {
						fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.ID, d.MessageID, d.AuthorID, d.Disease)
					}
					return w.Flush()
				})
			})
		},
	}
	cmd.Flags().String("message", "", "Only diagnoses on this message id (msg-N)")
	cmd.Flags().String("author", "", "Only diagnoses by this username")
	cmd.Flags().Int("limit", -1, "Maximum number of diagnoses (-1 for all)")
	return cmd
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
