package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"iapBack/internal/config"
)

const defaultConfigPath = "config/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// runtimeEnv is filled by the root command before any subcommand runs.
type runtimeEnv struct {
	configPath string
	cfg        config.Config
	logger     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	env := &runtimeEnv{}

	rootCmd := &cobra.Command{
		Use:          "iap",
		Short:        "In-app purchase verification gateway for App Store and Google Play",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.load()
		},
	}

	defaultPath := os.Getenv("IAP_CONFIG")
	if defaultPath == "" {
		defaultPath = defaultConfigPath
	}
	rootCmd.PersistentFlags().StringVar(&env.configPath, "config", defaultPath, "path to the YAML config file")

	rootCmd.AddCommand(
		newServeCmd(env),
		newMigrateCmd(env),
		newVerifyCmd(env),
	)
	return rootCmd
}

func (e *runtimeEnv) load() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(e.configPath)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.logger = newLogger(cfg)
	return nil
}
