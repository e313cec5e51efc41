package main

import (
	"fmt"
	"os"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/cli"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/cli/admin"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sishelperd",
		Short: "Sishelper daemon and CLI",
		Long:  "Sishelper daemon for running the grounded generation API server and inspecting the audit log",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.AuditCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
