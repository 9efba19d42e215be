package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/amber/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage amber configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path(flagDir)
		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "Config file already exists at %s\n", path)
			return nil
		}
		if err := config.Save(flagDir, config.Default()); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Config file created at %s\n", path)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one effective configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagDir, nil)
		if err != nil {
			return err
		}
		v, err := getField(cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(flagDir)
		if err != nil {
			return err
		}
		if err := config.SetField(&cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := config.Save(flagDir, cfg); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", args[0], args[1])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(flagDir, nil)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(os.Stdout, config.Path(flagDir))
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

// getField reads a single config field by the same key names SetField
// accepts.
func getField(cfg config.Config, key string) (string, error) {
	switch key {
	case "store":
		return cfg.Store, nil
	case "format":
		return cfg.Format, nil
	case "scan.maxFiles":
		return strconv.Itoa(cfg.Scan.MaxFiles), nil
	case "scan.maxDepth":
		return strconv.Itoa(cfg.Scan.MaxDepth), nil
	case "bundle.maxLines":
		return strconv.Itoa(cfg.Bundle.MaxLines), nil
	case "bundle.ttlSeconds":
		return strconv.Itoa(cfg.Bundle.TTLSeconds), nil
	case "cache.maxAgeDays":
		return strconv.Itoa(cfg.Cache.MaxAgeDays), nil
	case "cache.retentionDays":
		return strconv.Itoa(cfg.Cache.RetentionDays), nil
	case "fetch.attempts":
		return strconv.Itoa(cfg.Fetch.Attempts), nil
	case "fetch.attemptTimeoutSeconds":
		return strconv.Itoa(cfg.Fetch.AttemptTimeoutSeconds), nil
	case "fetch.timeoutSeconds":
		return strconv.Itoa(cfg.Fetch.TimeoutSeconds), nil
	case "model.provider":
		return cfg.Model.Provider, nil
	case "model.name":
		return cfg.Model.Name, nil
	case "redact.secrets":
		return strconv.FormatBool(cfg.Redact.Secrets), nil
	case "redact.paths":
		return strings.Join(cfg.Redact.Paths, ","), nil
	}
	return "", fmt.Errorf("unknown config key: %s", key)
}
