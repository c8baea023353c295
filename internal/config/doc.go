// Package config loads lockreg settings through viper.
//
// Settings come from $XDG_CONFIG_HOME/lockreg/config.yaml and from
// LOCKREG_-prefixed environment variables (e.g. LOCKREG_LEDGER_MAX_LOCK_DURATION).
// SetDefaults registers every key so environment overrides work without a
// config file. Load unmarshals and validates, returning ValidationErrors
// that list every problem at once.
package config
