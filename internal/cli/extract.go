package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/extractor"
	"github.com/user/court-watch/internal/page"
	"github.com/user/court-watch/internal/usecase"
)

func newExtractCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "extract <file.html> [facility]",
		Short: "Extract slots from a saved detail page",
		Long: "Extract slots from a saved detail page. The page is classified first; " +
			"error, block and blank pages are refused.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			facility := "-"
			if len(args) == 2 {
				facility = args[1]
			}

			text, err := page.VisibleText(string(b))
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			// A saved file has no HTTP status.
			if state := page.Classify(text, 0); state != entity.PageValid {
				return fmt.Errorf("%w: %s is %s", entity.ErrUnverifiedPage, args[0], state)
			}

			slots, err := extractor.New().ExtractSlots(string(b), facility)
			if err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			result := usecase.Aggregate([]entity.FacilityResult{{Facility: facility, Slots: slots}})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if result.Slots == nil {
					result.Slots = []entity.SlotRecord{}
				}
				return enc.Encode(result.Slots)
			}
			if len(result.Slots) == 0 {
				fmt.Fprintln(out, "no slots")
				return nil
			}
			fmt.Fprint(out, usecase.SlotsMessage(result).Body)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print slots as JSON")
	return cmd
}
