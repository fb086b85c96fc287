// Command libraryctl administers a library database directly: schema
// migration, loan reports and account maintenance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/book"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/loan"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/database"
	"github.com/ovaphlow/pitchfork/service-library-go/pkg/utilities"
)

// app is built lazily by PersistentPreRunE so --help works without a database.
type app struct {
	db     *sqlx.DB
	logger *zap.SugaredLogger
	books  *book.Service
	users  *user.Service
	loans  *loan.Service
}

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var dsn, driver string

	root := &cobra.Command{
		Use:          "libraryctl",
		Short:        "Administer the library database",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(driver, dsn)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&driver, "driver", "", "database driver (postgres|sqlite3), overrides DATABASE_DRIVER")
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "database DSN, overrides DATABASE_URL")

	root.AddCommand(
		newMigrateCmd(a),
		newLoansCmd(a),
		newUsersCmd(a),
		newBooksCmd(a),
	)
	return root
}

func (a *app) open(driver, dsn string) error {
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = lg.Sugar()

	cfg := database.ConfigFromEnv()
	if driver != "" {
		cfg.Driver = driver
	}
	if dsn != "" {
		cfg.DSN = dsn
	}
	if a.db, err = database.Connect(cfg); err != nil {
		return err
	}
	clock := clockwork.NewRealClock()
	a.books = book.NewService(a.db, clock, a.logger)
	a.users = user.NewService(a.db, user.HasherFromEnv(), clock, a.logger)
	a.loans = loan.NewService(a.db, loan.PolicyFromEnv(), clock, a.logger)
	return nil
}

func (a *app) close() error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.EnsureSchema(cmd.Context(), a.db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func printJSON(cmd *cobra.Command, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
