package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the build version, overridable at link time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "picis",
	Short: "PICIS is a website-security analysis tracking service",
	Long: `PICIS tracks website-security analyses and guards every change to its
entity inventory behind a two-phase approval workflow with session-based
re-authentication.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
