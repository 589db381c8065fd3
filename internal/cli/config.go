package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change client settings",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting",
	Long: `Change a setting in ~/.agrisense/config.yaml.

Keys: api_url, request_timeout, page_size, poll_limit, poll_interval, log_level, log_file, log_console`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig(cmd)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Printf("# %s\n%s", cfg.Dir(), data)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig(cmd)
	key, value := args[0], args[1]

	var err error
	switch key {
	case "api_url":
		cfg.APIURL = value
	case "request_timeout":
		cfg.RequestTimeout, err = time.ParseDuration(value)
	case "page_size":
		cfg.PageSize, err = strconv.Atoi(value)
	case "poll_limit":
		cfg.PollLimit, err = strconv.Atoi(value)
	case "poll_interval":
		cfg.PollInterval, err = time.ParseDuration(value)
	case "log_level":
		cfg.LogLevel = value
	case "log_file":
		cfg.LogFile = value
	case "log_console":
		cfg.LogConsole, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Printf("✅ %s = %s\n", key, value)
	return nil
}
