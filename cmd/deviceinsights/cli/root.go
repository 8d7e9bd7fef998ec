package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deviceinsights",
		Short: "Device/network compatibility lookup service",
		Long: `DeviceInsights: a public device and network compatibility lookup API.

The server fronts every request with a hardened gateway: credential
authentication, deny-list screening, sliding-window rate limiting over a
persistent usage ledger, TTL caching of expensive external lookups, and
abuse detection with operator alerts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./deviceinsights.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite store (default: ~/.deviceinsights)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newDenyCmd())
	cmd.AddCommand(newAdminCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("deviceinsights")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.deviceinsights")
	}

	viper.SetEnvPrefix("DEVICEINSIGHTS")
	viper.AutomaticEnv()
	viper.ReadInConfig() // config file is optional
}
