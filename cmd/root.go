// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/schemafwd/migrate/cmd/flags"
)

// Version is set at build time via -ldflags.
var Version = "development"

func init() {
	viper.SetEnvPrefix("SCHEMAFWD")
	viper.AutomaticEnv()

	flags.ConnectionFlags(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "schemafwd",
	Short:        "Apply, roll back, and inspect relational schema migrations",
	SilenceUsage: true,
	Version:      Version,
}

// Execute runs the root command, registering every subcommand first.
func Execute() error {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(rollbackCmd())
	rootCmd.AddCommand(statusCmd())

	return rootCmd.Execute()
}
