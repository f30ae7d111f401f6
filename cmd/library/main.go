package main

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/Astemirdum/library-kv-service/library/app"
	"github.com/Astemirdum/library-kv-service/library/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		debug   bool
	)
	loadConfig := func() (*config.Config, error) {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		opts := []config.Option{config.WithWriteTimeout(time.Minute)}
		if debug {
			opts = append(opts, config.WithLogLevel(zapcore.DebugLevel))
		}
		return config.NewConfig(opts...), nil
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), cfg)
		},
	}

	root := &cobra.Command{
		Use:          "library",
		Short:        "Books, categories and loans over a key-value store",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load, ignored when missing")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "debug log level unless LOG_LEVEL is set")

	root.AddCommand(serve, &cobra.Command{
		Use:   "migrate",
		Short: "Create tables (dynamodb) or apply migrations (postgres)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return app.Migrate(cmd.Context(), cfg)
		},
	})
	return root
}
