package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pbaille/learnlog/internal/api"
	"github.com/pbaille/learnlog/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func getStore(dbPath string) (*store.Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(dbPath)
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.ServeAddr
			}

			logger, err := cfg.NewLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			s, err := getStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer s.Close()

			logger.Info("using database", zap.String("path", cfg.DBPath))
			return api.New(s, addr, logger).Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (default from config, :5000)")
	return cmd
}
