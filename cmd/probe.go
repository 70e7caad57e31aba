package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smazurov/camrelay/internal/encoders"
	"github.com/smazurov/camrelay/internal/logging"
	"github.com/spf13/cobra"
)

// CreateProbeEncoderCmd creates the probe-encoder command, which runs a
// trial encode for every hardware encoder candidate and prints the results.
func CreateProbeEncoderCmd() *cobra.Command {
	var configFile string
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "probe-encoder",
		Short: "Test which hardware H.264 encoders work",
		Long: `Encodes a short sample clip with each hardware H.264 encoder candidate ` +
			`and reports which ones succeed. Exits non-zero when none do.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := LoadOptions(cmd, configFile)
			if err != nil {
				return err
			}
			loggingConfig := opts.Logging()
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			binary := ResolveBinary(opts)
			fmt.Fprintf(cmd.OutOrStdout(), "ffmpeg: %s (version %s)\n", binary, encoders.Version(ctx, binary))
			fmt.Fprintf(cmd.OutOrStdout(), "sample: %s\n\n", opts.EncoderSample)

			results := NewDetector(opts, binary).ProbeAll(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), renderResults(results))

			if !anyWorking(results) {
				return fmt.Errorf("no working hardware encoder")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "camrelay.toml", "Path to configuration file")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}

func renderResults(results []encoders.Result) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		detail := ""
		if !r.OK {
			status = "failed"
			if r.Err != nil {
				detail = firstLine(r.Err.Error())
			}
		}
		rows = append(rows, []string{r.Codec, status, r.Duration.Round(10 * time.Millisecond).String(), detail})
	}
	return renderTable([]column{
		{Title: "Encoder"},
		{Title: "Result"},
		{Title: "Duration", Numeric: true},
		{Title: "Error"},
	}, rows)
}

func anyWorking(results []encoders.Result) bool {
	for _, r := range results {
		if r.OK {
			return true
		}
	}
	return false
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
