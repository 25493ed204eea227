// Package main provides the entry point for the authguard API server
package main

import (
	"os"

	"authguard/internal/config"
	"authguard/internal/logger"
	"authguard/internal/validation"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	envFile    string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "authguard",
	Short:         "Authentication, session and security audit API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "Path to env file")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to YAML config file (defaults to $CONFIG_FILE)")
}

// loadConfig reads the env file, then defaults, YAML and environment
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(envFile); err != nil && envFile != ".env" {
		return nil, err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Log)
	validation.Initialize()
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
