package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/strataledger/strata/global"
	"github.com/strataledger/strata/strati/console"
	"github.com/strataledger/strata/strati/db_cmd"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "strati",
	Short: "CLI for the strata global store",
	Long: `strati is a CLI tool for the strata journaled block store.
It provides database level access to persisted block store records for
admin and inspection purposes
`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		initConfig()
	},
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config profile name")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(initInitCmd())
	db_cmd.Init(rootCmd)
	rootCmd.InitDefaultHelpCmd()
}

// initConfig reads in the config profile and environment variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigName(configFile)
	} else {
		viper.SetConfigName(".strati")
	}
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		_, _ = fmt.Fprintf(os.Stderr, "Using config profile: %s\n", viper.ConfigFileUsed())
	}
}

func initInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Args:  cobra.NoArgs,
		Short: "initializes an empty config profile",
		Run: func(_ *cobra.Command, _ []string) {
			fname := ".strati.yaml"
			if configFile != "" {
				fname = configFile + ".yaml"
			}
			viper.SetDefault(global.ConfigKeyDBName, global.BlockStoreDBName)
			viper.SetDefault(global.ConfigKeyLogLevel, "info")
			console.AssertNoError(viper.SafeWriteConfigAs(fname))
			console.Infof("config profile '%s' has been created", fname)
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
