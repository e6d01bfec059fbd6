// Package cmd holds the auxiliary CLI commands added to the humacli root.
package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/AlexxIT/go2rtc/pkg/rtsp"
	"github.com/spf13/cobra"

	"github.com/smazurov/rtsp2web/internal/config"
)

// CreateValidateCmd returns the command that checks the streams file and
// probes each source with an RTSP DESCRIBE.
func CreateValidateCmd() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configured RTSP sources",
		Long:  `Loads the streams file and probes each source with an RTSP DESCRIBE, reporting which sources answer and what media they advertise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			streamsFile, _ := cmd.Flags().GetString("streams")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			noProbe, _ := cmd.Flags().GetBool("no-probe")
			return runValidate(cmd.OutOrStdout(), streamsFile, timeout, noProbe)
		},
	}

	validateCmd.Flags().StringP("streams", "s", "streams.toml", "Stream definitions file")
	validateCmd.Flags().Duration("timeout", 5*time.Second, "Per-source probe timeout")
	validateCmd.Flags().Bool("no-probe", false, "Only validate the file, skip network probes")
	return validateCmd
}

func runValidate(w io.Writer, streamsFile string, timeout time.Duration, noProbe bool) error {
	specs, err := config.LoadStreams(streamsFile)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d stream(s)\n", streamsFile, len(specs))

	failed := 0
	for i, spec := range specs {
		fmt.Fprintf(w, "[%d] %s  %s\n", i, spec.Name, spec.URL)
		if noProbe {
			continue
		}

		medias, probeErr := probeSource(spec.URL, timeout)
		if probeErr != nil {
			failed++
			fmt.Fprintf(w, "    FAIL: %v\n", probeErr)
			continue
		}
		fmt.Fprintf(w, "    OK: %s\n", strings.Join(medias, ", "))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed the probe", failed, len(specs))
	}
	return nil
}

// probeSource runs an RTSP DESCRIBE against url and reports the advertised
// media. The probe is bounded by timeout; a hung source is abandoned rather
// than waited on.
func probeSource(url string, timeout time.Duration) ([]string, error) {
	client := rtsp.NewClient(url)
	client.Backchannel = false

	type result struct {
		medias []string
		err    error
	}
	done := make(chan result, 1)

	go func() {
		if err := client.Dial(); err != nil {
			done <- result{err: fmt.Errorf("dial: %w", err)}
			return
		}
		defer func() { _ = client.Close() }()

		if err := client.Describe(); err != nil {
			done <- result{err: fmt.Errorf("describe: %w", err)}
			return
		}

		var medias []string
		for _, media := range client.Medias {
			desc := media.Kind
			for _, codec := range media.Codecs {
				desc += "/" + codec.Name
			}
			medias = append(medias, desc)
		}
		done <- result{medias: medias}
	}()

	select {
	case r := <-done:
		return r.medias, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("no answer after %s", timeout)
	}
}
