package cli

import (
	"context"
	"fmt"

	"github.com/existflow/agrisense/internal/app"
	"github.com/existflow/agrisense/internal/config"
	"github.com/existflow/agrisense/internal/logger"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFile    string
	logConsole bool
	apiURL     string
)

type configKey struct{}

var rootCmd = &cobra.Command{
	Use:   "agri",
	Short: "AgriSense - crop, fertilizer and disease advice from the terminal",
	Long: `AgriSense talks to the agricultural advisory backend: sign in, ask for
crop, fertilizer or plant-disease recommendations, and browse your history.

Run 'agri' without arguments to open the dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config from file and environment (or defaults)
		cfg, err := config.Load()
		if err != nil {
			logger.Warn("Failed to load config, using defaults", logger.Err(err))
			cfg = config.DefaultConfig()
		}

		// Override with CLI flags if provided
		configChanged := false
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
			configChanged = true
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
			configChanged = true
		}
		if cmd.Flags().Changed("log-console") {
			cfg.LogConsole = logConsole
			configChanged = true
		}
		if cmd.Flags().Changed("api-url") {
			cfg.APIURL = apiURL
		}

		// Only logging flags are sticky
		if configChanged {
			if err := cfg.Save(); err != nil {
				logger.Warn("Failed to save config", logger.Err(err))
			}
		}

		logConfig := logger.Config{
			Level:      logger.ParseLevel(cfg.LogLevel),
			FilePath:   cfg.LogFile,
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxAge:     7,
			MaxBackups: 5,
			Console:    cfg.LogConsole,
		}
		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
		logger.Info("AgriSense started", logger.F("command", cmd.Name()), logger.F("api", cfg.APIURL))
		return nil
	},
	RunE: runDashboard,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("AgriSense exiting", logger.F("command", cmd.Name()))
		logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL for this run")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(cropCmd)
	rootCmd.AddCommand(fertilizerCmd)
	rootCmd.AddCommand(diseaseCmd)
	rootCmd.AddCommand(activitiesCmd)
	rootCmd.AddCommand(weatherCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(configCmd)
}

// loadedConfig returns the config resolved by the root command
func loadedConfig(cmd *cobra.Command) *config.Config {
	if cfg, ok := cmd.Context().Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

// openApp builds the application context for one command run
func openApp(cmd *cobra.Command) (*app.App, error) {
	a, err := app.Open(cmd.Context(), loadedConfig(cmd))
	if err != nil {
		logger.Error("Failed to open application context", logger.Err(err))
		return nil, err
	}
	return a, nil
}

// requireSession waits for the stored token to resolve and fails when nobody is logged in
func requireSession(cmd *cobra.Command, a *app.App) error {
	if err := a.Session.WaitReady(cmd.Context()); err != nil {
		return err
	}
	if a.Session.CurrentUser() == nil {
		return fmt.Errorf("not logged in. Run: agri auth login")
	}
	return nil
}
