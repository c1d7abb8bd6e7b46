package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wtfashwin/Quiz-App/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "quiz",
	Short:         "Real-time multiplayer quiz room coordinator",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(clientCmd)
	rootCmd.AddCommand(questionsCmd)
}

// Execute runs the command line.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
