package main

import (
	"fmt"
	"os"

	"github.com/fjod/med_store/internal/catalog"
	"github.com/spf13/cobra"
)

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply catalog and cart storage migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)

			repo, err := catalog.NewRepository(cfg.Catalog.DSN)
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer repo.Close()
			if err := repo.RunMigrations(); err != nil {
				return err
			}
			logger.Info("catalog migrations applied")

			// sqlite migrates on open; the other backends need no schema
			if cfg.Storage.Backend == "sqlite" {
				_, closeBackend, err := openBackend(cmd.Context(), cfg.Storage)
				if err != nil {
					return err
				}
				defer closeBackend(cmd.Context())
				logger.Info("cart storage migrations applied", "path", cfg.Storage.SQLitePath)
			}
			return nil
		},
	}
}
