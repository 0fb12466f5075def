package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Common Workflow Examples")
			output.Println()

			examples := []struct {
				title    string
				commands []string
			}{
				{
					title: "Load Data",
					commands: []string{
						"platform-scanner import --csv ./csv        # Import a directory of <code>.csv files",
						"platform-scanner data 600000 --limit 10    # Check what was stored",
					},
				},
				{
					title: "Scan From The Command Line",
					commands: []string{
						"platform-scanner scan                                  # Whole universe, config defaults",
						"platform-scanner scan --windows 80,100,120             # Longer platforms",
						"platform-scanner scan --codes 600000,000001 --json     # Selected codes as JSON",
						"platform-scanner scan --data ./csv --industry-diversity # Straight from CSV files",
					},
				},
				{
					title: "Run The API",
					commands: []string{
						"platform-scanner serve --addr :8000",
						"curl -XPOST localhost:8000/api/scan/start -d '{\"windows\":[30,60]}'",
						"curl localhost:8000/api/scan/status/<task_id>",
						"platform-scanner jobs list                 # Jobs survive restarts",
					},
				},
			}

			for _, ex := range examples {
				output.Info("%s", ex.title)
				output.Println("  " + strings.Join(ex.commands, "\n  "))
				output.Println()
			}
			return nil
		},
	}
}
