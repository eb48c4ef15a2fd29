package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/malwarebo/condopay/config"
	"github.com/malwarebo/condopay/utils"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"

	cfg     *config.Config
	envFile string
)

var rootCmd = &cobra.Command{
	Use:           "condopay",
	Short:         "Condominium boleto billing service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}

		loaded, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		cfg = loaded

		utils.Setup(utils.LogConfig{
			Level:   cfg.Monitoring.LogLevel,
			Format:  cfg.Monitoring.LogFormat,
			Service: "condopay",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the configuration")
	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}
