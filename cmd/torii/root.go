package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "torii",
	Short: "Torii CLI tool can run stage scenarios and inspect the " +
		"journals they record.",
	Long: `Torii CLI tool can run stage scenarios and inspect the journals ` +
		`they record. Currently, it supports running a demo scenario and ` +
		`listing and dumping journal databases.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env file is fine. Flags beat the environment.
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
