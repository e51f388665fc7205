package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JSPierceColorado/Kraken-Seller/pkg/app"
	"github.com/JSPierceColorado/Kraken-Seller/utilities"
)

var (
	cfgFile string
	cfg     utilities.AppConfig
	logger  *utilities.Logger
)

// rootCmd represents the base command for the Kraken-Seller CLI.
var rootCmd = &cobra.Command{
	Use:   "kraken-seller",
	Short: "Trailing-sell monitor for Kraken spot positions",
	Long: `Kraken-Seller watches every non-cash balance in a Kraken account and exits
positions by rule: a stop-loss while unarmed, arming at a profit threshold,
and a trailing take-profit once armed. It never buys.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, loadedLogger, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg = loadedCfg
		logger = loadedLogger
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			logger.LogWarn("Received signal: %v, initiating graceful shutdown.", sig)
			cancel()
		}()

		return app.Run(ctx, &cfg, logger)
	},
}

// LoadConfig loads AppConfig from an optional JSON file plus the environment
// and creates the Logger. Credentials and deployment knobs always come from
// the environment; the file carries the less volatile settings.
func LoadConfig(path string) (utilities.AppConfig, *utilities.Logger, error) {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	viper.SetConfigType("json")
	viper.AutomaticEnv()

	viper.SetDefault("kraken.base_url", "https://api.kraken.com")
	viper.SetDefault("kraken.request_timeout_sec", 15)
	viper.SetDefault("kraken.max_retries", 2)
	viper.SetDefault("kraken.retry_delay_sec", 2)
	viper.SetDefault("kraken.rate_limit_per_sec", 1)
	viper.SetDefault("kraken.rate_burst", 2)
	viper.SetDefault("ledger.path", "data/positions.csv")
	viper.SetDefault("journal.database_path", "data/journal.db")
	viper.SetDefault("journal.retention_days", 30)
	viper.SetDefault("journal.cleanup_interval_hours", 24)
	viper.SetDefault("logging.level", "info")

	for key, env := range map[string]string{
		"kraken.api_key":                "KRAKEN_API_KEY",
		"kraken.api_secret":             "KRAKEN_API_SECRET",
		"trading.dry_run":               "DRY_RUN",
		"trading.base_currency":         "BASE_CURRENCY",
		"trading.poll_interval_seconds": "POLL_INTERVAL_SECONDS",
		"ledger.path":                   "LEDGER_PATH",
		"journal.database_path":         "JOURNAL_DB_PATH",
		"discord.webhook_url":           "DISCORD_WEBHOOK_URL",
		"logging.level":                 "LOG_LEVEL",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			return utilities.AppConfig{}, nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	if _, statErr := os.Stat(path); statErr == nil {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return utilities.AppConfig{}, nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var config utilities.AppConfig
	if err := viper.Unmarshal(&config); err != nil {
		return utilities.AppConfig{}, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Trading.ApplyDefaults()

	logLevel, err := utilities.ParseLogLevel(config.Logging.Level)
	if err != nil {
		return utilities.AppConfig{}, nil, fmt.Errorf("invalid log level in config: %w", err)
	}

	return config, utilities.NewLogger(logLevel), nil
}

// Execute runs the root command.
func Execute() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.json", "config file (optional; env vars override)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
