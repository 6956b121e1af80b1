package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hivellm/nexus/common"
)

// cfgFile holds the path to an explicit config file, set via --config.
var cfgFile string

// RootCmd is the nexusd entry point. It carries no Run of its own; serveCmd
// and queryCmd do the actual work.
var RootCmd = &cobra.Command{
	Use:   "nexusd",
	Short: "Nexus embedded property-graph engine",
	Long: `nexusd loads a Nexus graph from a bbolt-backed snapshot file (or
starts empty) and either serves it over HTTP or executes a single Cypher
query and exits.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.nexusd.yaml)")
	RootCmd.PersistentFlags().String("data-dir", "nexus-data.db", "path to the bbolt snapshot file")
	RootCmd.PersistentFlags().String("postgres-url", "", "optional Postgres DSN for catalog auditing")
	RootCmd.PersistentFlags().String("log-level", "info", "logrus level: debug, info, warn, error")
	RootCmd.PersistentFlags().String("log-format", "text", "log output format: text or json")

	viper.BindPFlag("data_dir", RootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("postgres_url", RootCmd.PersistentFlags().Lookup("postgres-url"))
	viper.BindPFlag("log_level", RootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", RootCmd.PersistentFlags().Lookup("log-format"))

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(queryCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".nexusd")
	}

	viper.SetEnvPrefix("nexusd")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}

	cfg := common.DefaultLoggerConfig()
	cfg.Level = common.LogLevel(viper.GetString("log_level"))
	cfg.Format = viper.GetString("log_format")
	configured := common.NewLogger(cfg)

	logrus.SetLevel(configured.GetLevel())
	logrus.SetFormatter(configured.Formatter)
}
