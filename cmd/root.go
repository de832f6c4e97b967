////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package cmd initializes the CLI and config parsers as well as the logger.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// envPrefix is prepended to the upper-cased flag name of every setting read
// from the environment, e.g. SYNAPSE_REDIS.
const envPrefix = "SYNAPSE"

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "synapse",
	Short: "Chat client for the synapse reconciliation and liveness engine",
	Long: "Chat client for the synapse reconciliation and liveness engine. " +
		"Conversations, presence and typing state are shared through Redis.",
	Args: cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetUint(logLevelFlag), viper.GetString(logFlag))
	},
}

func init() {
	// NOTE: The point of init() is to be declarative.
	// There is one init in each sub command. Do not put variable declarations
	// here, and ensure all the Flags are of the *P variety, unless there's a
	// very good reason not to have them as local params to sub command.
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP(configFlag, "c", "",
		"Path to a YAML or JSON config file. Every flag may be set there "+
			"or through a "+envPrefix+"_ environment variable")

	rootCmd.PersistentFlags().UintP(logLevelFlag, "v", 0,
		"Verbose mode for debugging")
	bindPFlag(rootCmd, logLevelFlag)

	rootCmd.PersistentFlags().StringP(logFlag, "l", "-",
		"Path to the log output path (- is stdout)")
	bindPFlag(rootCmd, logFlag)

	rootCmd.PersistentFlags().StringP(redisFlag, "r",
		"redis://localhost:6379/0", "URL of the Redis server holding the "+
			"shared chat state")
	bindPFlag(rootCmd, redisFlag)

	rootCmd.PersistentFlags().StringP(sessionFlag, "s", "session",
		"Sets the storage directory for the signed in identity")
	bindPFlag(rootCmd, sessionFlag)

	rootCmd.PersistentFlags().StringP(passwordFlag, "p", "",
		"Password to the session storage")
	bindPFlag(rootCmd, passwordFlag)

	rootCmd.PersistentFlags().String(cacheFlag, "synapse.db",
		"Path to the local message cache database")
	bindPFlag(rootCmd, cacheFlag)

	rootCmd.PersistentFlags().Bool(noCacheFlag, false,
		"Read message history from the live feed only and never queue "+
			"messages locally")
	bindPFlag(rootCmd, noCacheFlag)

	rootCmd.PersistentFlags().String(paramsFlag, "",
		"JSON encoded messenger parameters, defaults are used for every "+
			"field left out")
	bindPFlag(rootCmd, paramsFlag)

	rootCmd.PersistentFlags().String(remoteParamsFlag, "",
		"JSON encoded Redis client parameters")
	bindPFlag(rootCmd, remoteParamsFlag)

	rootCmd.PersistentFlags().String(healthParamsFlag, "",
		"JSON encoded connectivity monitor parameters")
	bindPFlag(rootCmd, healthParamsFlag)

	rootCmd.PersistentFlags().String(metricsFlag, "",
		"Address to serve Prometheus metrics on, e.g. :9090. Disabled "+
			"when empty")
	bindPFlag(rootCmd, metricsFlag)

	rootCmd.PersistentFlags().Duration(waitFlag, 0,
		"How long streaming commands run before exiting. Runs until "+
			"interrupted when zero")
	bindPFlag(rootCmd, waitFlag)
}

// initConfig reads the config file and the environment into viper.
func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configPath, err := rootCmd.PersistentFlags().GetString(configFlag)
	if err != nil || configPath == "" {
		return
	}
	viper.SetConfigFile(configPath)
	if err = viper.ReadInConfig(); err != nil {
		jww.FATAL.Panicf("Failed to read config file %s: %+v",
			configPath, err)
	}
}

// bindPFlag binds the persistent flag of cmd to its viper key.
func bindPFlag(cmd *cobra.Command, flag string) {
	err := viper.BindPFlag(flag, cmd.PersistentFlags().Lookup(flag))
	if err != nil {
		jww.FATAL.Panicf("Failed to bind flag %s: %+v", flag, err)
	}
}

// bindFlag binds the local flag of cmd to its viper key.
func bindFlag(cmd *cobra.Command, flag string) {
	err := viper.BindPFlag(flag, cmd.Flags().Lookup(flag))
	if err != nil {
		jww.FATAL.Panicf("Failed to bind flag %s: %+v", flag, err)
	}
}
