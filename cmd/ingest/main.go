package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "ingest",
		Short: "WhatsApp webhook ingestion service",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the webhook HTTP server",
		Run: func(_ *cobra.Command, _ []string) {
			runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runMigrate()
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
