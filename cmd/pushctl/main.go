package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pushctl",
	Short: "pushctl - operator CLI for the newsletter push service",
	Long:  `pushctl submits newsletter pushes, inspects their workflow state, and resumes or cancels them through the push service HTTP API.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pushctl %s (built %s)\n", version, buildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (default pushctl.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", "", "Push service base URL (overrides config)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(listsCmd)
	rootCmd.AddCommand(addressesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
