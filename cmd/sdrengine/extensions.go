package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lumenforge/capturecore/internal/cvar"
	"github.com/lumenforge/capturecore/internal/extensions"
)

var extensionsDir string

var extensionsCmd = &cobra.Command{
	Use:   "extensions",
	Short: "Inspect the extension directory",
}

var extensionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Discover and print loaded extensions in load order",
	RunE:  runExtensionsList,
}

func init() {
	extensionsCmd.PersistentFlags().StringVar(&extensionsDir, "dir", "Extensions/Enabled", "extensions directory")
	extensionsCmd.AddCommand(extensionsListCmd)
}

func runExtensionsList(cmd *cobra.Command, args []string) error {
	registry := cvar.New()
	host := extensions.NewHost(extensionsDir, registry, nil)
	if err := host.Discover(); err != nil {
		return err
	}
	defer host.Close()

	records := host.List()
	if len(records) == 0 {
		fmt.Println("no extensions loaded")
		return nil
	}
	for i, r := range records {
		fmt.Printf("%d: %s (%s)\n", i, r.Namespace, r.File)
	}
	return nil
}
