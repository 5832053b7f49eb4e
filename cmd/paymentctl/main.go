package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Attaullahwazir/Payzenix/internal/cipher"
	"github.com/Attaullahwazir/Payzenix/internal/config"
	"github.com/Attaullahwazir/Payzenix/internal/repository"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Operator tooling for the Payzenix payment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("driver", "", "database driver (postgres, sqlite3); defaults to configuration")
	rootCmd.PersistentFlags().String("dsn", "", "database connection string; defaults to configuration")

	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(verifyTokenCmd())
	return rootCmd
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new base64 card encryption master key",
		Long: `Generate a new 256-bit master key for card token encryption.

Set the printed value as PAYZENIX_SECURITY_CARD_KEY. Rotating the key makes
previously stored tokens undecryptable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(cmd.OutOrStdout())
		},
	}
}

func runKeygen(out io.Writer) error {
	key, err := cipher.GenerateKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, key)
	return err
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the transactions schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func verifyTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-token [transaction-id]",
		Short: "Check that a stored card token still decrypts under the configured key",
		Long: `Load the encrypted card token of one transaction and verify it opens under
the configured master key. Reports OK or the failure; never prints card data.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			key, err := cipher.ParseKey(cfg.Security.CardKey)
			if err != nil {
				return err
			}
			svc, err := cipher.New(key)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			return runVerifyToken(ctx, cmd.OutOrStdout(), repository.NewTransactionWriteRepository(db), svc, args[0])
		},
	}
}

type tokenSource interface {
	EncryptedTokenByID(ctx context.Context, id string) (string, error)
}

type tokenOpener interface {
	Decrypt(token string) (string, error)
}

func runVerifyToken(ctx context.Context, out io.Writer, store tokenSource, opener tokenOpener, id string) error {
	token, err := store.EncryptedTokenByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("transaction %s not found", id)
	}
	if err != nil {
		return err
	}

	plaintext, err := opener.Decrypt(token)
	if err != nil {
		fmt.Fprintf(out, "%s: FAILED\n", id)
		return err
	}
	if _, _, err := cipher.SplitCardToken(plaintext); err != nil {
		fmt.Fprintf(out, "%s: FAILED\n", id)
		return err
	}
	fmt.Fprintf(out, "%s: OK\n", id)
	return nil
}

// loadConfig reads the service configuration and applies the database flag
// overrides. Secrets unrelated to the command are not required.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
		cfg.Database.URL = dsn
	}
	if d := cfg.Database.Driver; d != repository.DriverPostgres && d != repository.DriverSQLite {
		return config.Config{}, fmt.Errorf("unsupported database driver %q", d)
	}
	return cfg, nil
}
