package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List stored projects",
	RunE: func(cmd *cobra.Command, _ []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}
		backend, err := openBackend(cmd.Context(), settings)
		if err != nil {
			return err
		}
		defer backend.Close()

		infos, err := backend.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("no projects")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("%s  %-24s  %8d bytes  %s\n",
				info.ID, info.Name, info.Size, info.UpdatedAt.Format(time.RFC3339))
		}
		return nil
	},
}
