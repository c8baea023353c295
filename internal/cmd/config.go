package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/lockreg/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configKeys maps every settable key to its value kind.
var configKeys = map[string]string{
	"ledger.max_lock_duration":     "duration",
	"ledger.default_lock_duration": "duration",
	"certificates.enabled":         "bool",
	"certificates.classes":         "list",
	"store.dir":                    "string",
	"logging.enabled":              "bool",
	"logging.level":                "string",
	"output.color":                 "string",
}

// RegisterConfigCmd adds the config command tree to parent.
func RegisterConfigCmd(parent *cobra.Command) {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View or modify lockreg configuration",
		Long: `View or modify lockreg configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
		RunE: runConfigShow,
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE:  runConfigShow,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  lockreg config set ledger.max_lock_duration 720h
  lockreg config set certificates.enabled true
  lockreg config set certificates.classes art,land

Valid keys:
  ledger.max_lock_duration     - Longest lock accepted (0 = unlimited)
  ledger.default_lock_duration - Lock duration when neither --for nor --until is given
  certificates.enabled         - Mint bound certificates for locks (true/false)
  certificates.classes         - Comma-separated asset classes covered (empty = all)
  store.dir                    - State directory
  logging.enabled              - Write lockreg.log in the state directory (true/false)
  logging.level                - Options: debug, info, warn, error
  output.color                 - Options: auto, always, never`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigSet,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create a default config file",
		Long:  `Create a default config file at ~/.config/lockreg/config.yaml with all available options.`,
		RunE:  runConfigInit,
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		RunE:  runConfigPath,
	})
	parent.AddCommand(configCmd)
}

// configView is the printable form of a Config.
type configView struct {
	Ledger struct {
		MaxLockDuration     string `yaml:"max_lock_duration"`
		DefaultLockDuration string `yaml:"default_lock_duration"`
	} `yaml:"ledger"`
	Certificates config.CertificatesConfig `yaml:"certificates"`
	Store        struct {
		Dir      string `yaml:"dir"`
		Resolved string `yaml:"resolved"`
	} `yaml:"store"`
	Logging config.LoggingConfig `yaml:"logging"`
	Output  config.OutputConfig  `yaml:"output"`
}

func newConfigView(cfg *config.Config) configView {
	var v configView
	v.Ledger.MaxLockDuration = cfg.Ledger.MaxLockDuration.String()
	v.Ledger.DefaultLockDuration = cfg.Ledger.DefaultLockDuration.String()
	v.Certificates = cfg.Certificates
	v.Store.Dir = cfg.Store.Dir
	v.Store.Resolved = cfg.Store.ResolveStoreDir()
	v.Logging = cfg.Logging
	v.Output = cfg.Output
	return v
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	data, err := yaml.Marshal(newConfigView(cfg))
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	kind, ok := configKeys[key]
	if !ok {
		keys := make([]string, 0, len(configKeys))
		for k := range configKeys {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(keys, ", "))
	}

	var typed any
	switch kind {
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected a duration such as 24h", key)
		}
		typed = d.String()
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typed = value == "true"
	case "list":
		items := []string{}
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		typed = items
	default:
		typed = value
	}

	// Edit the file alone so flags and environment never leak into it
	configFile := config.ConfigFile()
	file := viper.New()
	file.SetConfigFile(configFile)
	if _, err := os.Stat(configFile); err == nil {
		if err := file.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	file.Set(key, typed)

	cfg := config.Default()
	if err := file.Unmarshal(cfg); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return config.ValidationErrors(errs)
	}

	if err := os.MkdirAll(config.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := file.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typed)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'lockreg config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configContent := `# lockreg configuration

# Lock placement
ledger:
  # Longest lock accepted; 0 means unlimited
  max_lock_duration: 0s
  # Used by 'lockreg lock' when neither --for nor --until is given
  default_lock_duration: 24h0m0s

# Bound certificates minted for the locker while a lock is in force
certificates:
  enabled: false
  # Asset classes covered; an empty list covers every class
  classes: []

# State directory holding state.json, events.jsonl and lockreg.log
store:
  # Empty means $XDG_DATA_HOME/lockreg or ~/.local/share/lockreg
  dir: ""

logging:
  enabled: true
  # Options: debug, info, warn, error
  level: info

output:
  # Options: auto, always, never
  color: auto
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}
	fmt.Fprintln(out, "\nEnvironment variables: LOCKREG_* (e.g., LOCKREG_LEDGER_MAX_LOCK_DURATION)")
	return nil
}
