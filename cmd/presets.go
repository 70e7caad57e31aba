package cmd

import (
	"fmt"
	"strconv"

	"github.com/smazurov/camrelay/internal/policy"
	"github.com/spf13/cobra"
)

// CreatePresetsCmd creates the presets command, which prints the named
// camera resolutions with the framerate and bitrate each tier would use.
func CreatePresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "Show resolution presets and the stream settings they select",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), renderPresets())
		},
	}
}

func renderPresets() string {
	var rows [][]string
	for _, name := range policy.PresetNames() {
		for _, aspect := range []policy.Aspect{policy.Aspect4x3, policy.Aspect16x9} {
			res, err := policy.Preset(name, aspect)
			if err != nil {
				continue
			}
			restricted := policy.Select(res.Width, res.Height, false)
			full := policy.Select(res.Width, res.Height, true)
			rows = append(rows, []string{
				name,
				string(aspect),
				res.String(),
				strconv.Itoa(restricted.Framerate),
				formatKbps(restricted.BitrateBps),
				strconv.Itoa(full.Framerate),
				formatKbps(full.BitrateBps),
			})
		}
	}
	return renderTable([]column{
		{Title: "Preset"},
		{Title: "Aspect"},
		{Title: "Size", Numeric: true},
		{Title: "FPS", Numeric: true},
		{Title: "Bitrate", Numeric: true},
		{Title: "Pro FPS", Numeric: true},
		{Title: "Pro Bitrate", Numeric: true},
	}, rows)
}

func formatKbps(bps int) string {
	return strconv.Itoa(bps/1000) + " kbps"
}
