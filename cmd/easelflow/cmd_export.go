package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportProject string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a project document to a file or stdout",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportProject, "project", "", "Project id to export")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
	_ = exportCmd.MarkFlagRequired("project")
}

func runExport(cmd *cobra.Command, _ []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	backend, err := openBackend(cmd.Context(), settings)
	if err != nil {
		return err
	}
	defer backend.Close()

	doc, err := backend.Load(cmd.Context(), exportProject)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if exportOut == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", exportProject, exportOut)
	return nil
}
