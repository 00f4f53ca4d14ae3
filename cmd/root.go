package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the xopd application
var rootCmd = &cobra.Command{
	Use:   "xopd",
	Short: "Inspects and rewrites XOP/MTOM multipart SOAP messages",
	Long: `xopd runs the XOP actions over multipart/related SOAP messages
carrying an XML envelope and one binary attachment.

It can run as:
  - An HTTP service sitting in a gateway flow (serve)
  - A one-shot tool over a message file (process)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "xopd version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newVersionCmd())
}
