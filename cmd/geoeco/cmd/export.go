package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportUpload bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a snapshot of the registry, optionally uploading it",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, _, err := wire(cmd.Context())
		if err != nil {
			return err
		}
		defer container.Close()

		path, err := container.Snapshots.WriteLocal(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(path)

		if !exportUpload {
			return nil
		}
		if !container.Snapshots.RemoteEnabled() {
			return fmt.Errorf("upload requested but SNAPSHOT_ENABLED is not set")
		}
		key, err := container.Snapshots.Upload(cmd.Context(), cfg.Snapshot.Prefix)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "Also upload the snapshot to object storage")
}
