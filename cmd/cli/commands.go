package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nimasrn/cashback-ledger/internal/config"
	"github.com/nimasrn/cashback-ledger/internal/ledger"
	"github.com/nimasrn/cashback-ledger/internal/model"
	"github.com/nimasrn/cashback-ledger/internal/repository"
	"github.com/nimasrn/cashback-ledger/internal/rules"
	"github.com/nimasrn/cashback-ledger/pkg/pg"
	perrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	envPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "ledger-cli",
		Short:         "Operational tasks for the cashback ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envPath == "" {
				if _, err := os.Stat(".env"); err == nil {
					opts.envPath = ".env"
				}
			}
			return config.Load(opts.envPath)
		},
	}
	root.PersistentFlags().StringVar(&opts.envPath, "env", "", "path to a .env file")

	root.AddCommand(newMigrateCmd(), newRulesCmd(), newCardCmd())
	return root
}

func writeConfig() pg.Config {
	return pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}
}

func openDB() (*pg.DB, error) {
	conf := writeConfig()
	db, err := pg.CreateReadWrite(conf, conf, config.Get().AppDebug)
	if err != nil {
		return nil, perrors.Wrap(err, "connect to postgres")
	}
	db.SetTxTimeout(config.Get().LedgerTxTimeout)
	return db, nil
}

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pg.Migrate(writeConfig(), migrationsDir(dir))
		},
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "migrations directory (default MIGRATIONS_DIR)")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return pg.MigrationStatus(writeConfig(), migrationsDir(dir))
		},
	})
	return cmd
}

func migrationsDir(flag string) string {
	if flag != "" {
		return flag
	}
	return config.Get().MigrationsDir
}

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage tenant cashback configuration",
	}

	var (
		tenantID int64
		file     string
		dryRun   bool
	)
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert cashback rules, tier rules and offers from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(file)
			if err != nil {
				return perrors.Wrap(err, "open rule file")
			}
			defer fh.Close()

			parsed, err := rules.Parse(fh)
			if err != nil {
				return err
			}
			set, err := parsed.Build(tenantID)
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "valid: %d cashback rules, %d tier rules, %d offers\n",
					len(set.Cashback), len(set.Tiers), len(set.Offers))
				return nil
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			summary, err := rules.Import(cmd.Context(), db, repository.NewRuleRepository(db), set)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported: %d cashback rules, %d tier rules, %d offers\n",
				summary.CashbackRules, summary.TierRules, summary.Offers)
			return nil
		},
	}
	importCmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant id")
	importCmd.Flags().StringVar(&file, "file", "", "YAML rule file")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate only")
	_ = importCmd.MarkFlagRequired("tenant")
	_ = importCmd.MarkFlagRequired("file")

	cmd.AddCommand(importCmd)
	return cmd
}

func newCardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Inspect stored value cards",
	}

	var (
		tenantID int64
		rebuild  bool
	)
	auditCmd := &cobra.Command{
		Use:   "audit <card-uid>",
		Short: "Replay a card's transactions and compare with the cached balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			writer := ledger.NewWriter(db,
				repository.NewCardRepository(db),
				repository.NewCustomerRepository(db),
				repository.NewTransactionRepository(db),
				repository.NewRuleRepository(db),
			)
			audit, err := runAudit(cmd.Context(), writer, tenantID, args[0], rebuild)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err = enc.Encode(audit); err != nil {
				return err
			}
			if !audit.Consistent && !audit.Rebuilt {
				return fmt.Errorf("card %s is inconsistent", args[0])
			}
			return nil
		},
	}
	auditCmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant id")
	auditCmd.Flags().BoolVar(&rebuild, "rebuild", false, "overwrite the cached balance with the replayed one")
	_ = auditCmd.MarkFlagRequired("tenant")

	cmd.AddCommand(auditCmd)
	return cmd
}

type auditor interface {
	VerifyBalance(ctx context.Context, tenantID int64, cardUID string) (*model.BalanceAudit, error)
	RebuildBalance(ctx context.Context, tenantID int64, cardUID string) (*model.BalanceAudit, error)
}

func runAudit(ctx context.Context, a auditor, tenantID int64, uid string, rebuild bool) (*model.BalanceAudit, error) {
	if rebuild {
		return a.RebuildBalance(ctx, tenantID, uid)
	}
	return a.VerifyBalance(ctx, tenantID, uid)
}
