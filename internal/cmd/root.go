// Package cmd implements the lockreg command-line tool.
package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Iron-Ham/lockreg/internal/config"
	"github.com/Iron-Ham/lockreg/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Wrapper for the clock to allow testing
var now = time.Now

// NewRootCmd builds the lockreg command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lockreg",
		Short: "Time-bounded locks over NFT ownership",
		Long: `Lockreg keeps a registry of time-bounded locks over assets owned in an
NFT-style ownership registry. A locked asset cannot be transferred or
burned until its locker releases it or the lock expires.

State lives in a local directory: a JSON snapshot, an append-only
event journal and a lock file shared by concurrent invocations.

Exit status is 0 on success and 1 on a general failure. A rejected
operation exits with 10 (not found), 11 (unauthorized), 12 (invalid
argument), 13 (already locked), 14 (asset locked) or 15 (unsupported).`,
		SilenceUsage: true,
	}

	// Global flags
	root.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/lockreg/config.yaml)")
	root.PersistentFlags().String("store", "", "state directory (default is $HOME/.local/share/lockreg)")
	root.PersistentFlags().String("as", "", "identity performing the operation")
	_ = viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("store.dir", root.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("as", root.PersistentFlags().Lookup("as"))

	RegisterAssetCmds(root)
	RegisterLockCmds(root)
	RegisterApprovalCmds(root)
	RegisterQueryCmds(root)
	RegisterEventsCmd(root)
	RegisterConfigCmd(root)
	return root
}

// exitKindBase is the exit status of the first error kind.
const exitKindBase = 10

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	root := NewRootCmd()
	root.SilenceErrors = true
	c, err := root.ExecuteC()
	if err != nil {
		reportError(c.ErrOrStderr(), c, err)
	}
	return err
}

// ExitCode returns the process exit status for an error returned by Execute.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	kind := errors.Kind(err)
	for i, k := range errors.Kinds() {
		if k == kind {
			return exitKindBase + i
		}
	}
	return 1
}

// reportError prints err. Usage mistakes and configuration problems get a
// pointer to the command's help; rejected operations do not.
func reportError(w io.Writer, c *cobra.Command, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if !errors.IsUserFacing(err) {
		fmt.Fprintf(w, "Run '%s --help' for usage.\n", c.CommandPath())
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("LOCKREG")
	// Replace dots with underscores for nested keys in env vars
	// e.g., LOCKREG_LEDGER_MAX_LOCK_DURATION for ledger.max_lock_duration
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
