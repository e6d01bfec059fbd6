package cmd

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/rtsp2web/internal/config"
	"github.com/smazurov/rtsp2web/internal/ffmpeg"
)

// CreateSnapshotCmd returns the command that grabs a single frame from one
// configured stream and writes it to a JPEG file.
func CreateSnapshotCmd() *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Grab one frame from a stream",
		Long:  `Connects to one configured source, grabs a single frame, and writes it to a JPEG file. Useful for checking framing and exposure without running the server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			streamsFile, _ := cmd.Flags().GetString("streams")
			index, _ := cmd.Flags().GetInt("index")
			output, _ := cmd.Flags().GetString("output")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			maxWidth, _ := cmd.Flags().GetInt("max-width")
			quality, _ := cmd.Flags().GetInt("quality")

			specs, err := config.LoadStreams(streamsFile)
			if err != nil {
				return err
			}
			if index < 0 || index >= len(specs) {
				return fmt.Errorf("no stream with index %d (have %d)", index, len(specs))
			}
			spec := specs[index]

			command := ffmpeg.BuildSnapshotCommand(&ffmpeg.GrabParams{
				URL:      spec.URL,
				MaxWidth: maxWidth,
				Quality:  quality,
			}, output)

			cmdArgs, err := ffmpeg.ParseCommand(command)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			grab := exec.CommandContext(ctx, cmdArgs[0], cmdArgs[1:]...)
			if out, runErr := grab.CombinedOutput(); runErr != nil {
				return fmt.Errorf("snapshot of %q failed: %w\n%s", spec.Name, runErr, out)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s from %s\n", output, spec.Name)
			return nil
		},
	}

	snapshotCmd.Flags().StringP("streams", "s", "streams.toml", "Stream definitions file")
	snapshotCmd.Flags().IntP("index", "i", 0, "Stream index to snapshot")
	snapshotCmd.Flags().StringP("output", "o", "snapshot.jpg", "Output file")
	snapshotCmd.Flags().Duration("timeout", 15*time.Second, "Grab timeout")
	snapshotCmd.Flags().Int("max-width", 1280, "Maximum frame width")
	snapshotCmd.Flags().Int("quality", 80, "JPEG quality (1-100)")
	return snapshotCmd
}
