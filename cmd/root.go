package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the kbatch-proxy application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "kbatch-proxy",
	Short: "JupyterHub-authenticated gateway for Kubernetes batch jobs",
	Long: `kbatch-proxy is the server side of kbatch. It accepts Job and CronJob
submissions from notebook users, authenticates them against JupyterHub,
rewrites the workloads with the administrator's template and defaults, and
runs them in per-user namespaces. Users never talk to the Kubernetes API
directly; the proxy holds the only cluster credentials.

When run without subcommands, it starts the API server (equivalent to
'kbatch-proxy serve').`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. This is called from the
// main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application. It initializes and
// executes the root command, which in turn handles subcommands and flags.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "kbatch-proxy version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		// Cobra itself usually prints the error. Exiting with a non-zero
		// status code indicates that an error occurred during execution.
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
}
