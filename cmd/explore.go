package cmd

import (
	"encoding/json"
	"io"

	"strategy-lab/internal/dto"
	"strategy-lab/internal/service"
	"strategy-lab/pkg/utils"

	"github.com/spf13/cobra"
)

var exploreFlags struct {
	mode         string
	sampleSize   int
	condition    string
	days         int
	noCheckpoint bool
	limit        int
}

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Run one exploration against a fresh synthetic market",
	RunE:  runExplore,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the strategy grid axes and its theoretical size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *service.Service) error {
			return printJSON(cmd.OutOrStdout(), s.Catalog.Info())
		})
	},
}

func init() {
	flags := exploreCmd.Flags()
	flags.StringVar(&exploreFlags.mode, "mode", "", "sample or exhaustive (default from config)")
	flags.IntVarP(&exploreFlags.sampleSize, "sample-size", "n", 0, "strategies to sample")
	flags.StringVar(&exploreFlags.condition, "condition", "", "force a market condition: bull, bear, sideways or volatile")
	flags.IntVar(&exploreFlags.days, "days", 0, "trading days to synthesize")
	flags.BoolVar(&exploreFlags.noCheckpoint, "no-checkpoint", false, "do not save the exclusion registry after the run")
	flags.IntVar(&exploreFlags.limit, "limit", 0, "number of top results to print")
}

func runExplore(cmd *cobra.Command, args []string) error {
	req := dto.ExplorationRequest{
		Mode:        dto.ExplorationMode(exploreFlags.mode),
		SampleSize:  exploreFlags.sampleSize,
		Days:        exploreFlags.days,
		ResultLimit: exploreFlags.limit,
	}
	if exploreFlags.condition != "" {
		condition, err := dto.ParseMarketCondition(exploreFlags.condition)
		if err != nil {
			return err
		}
		req.Condition = condition
	}
	if exploreFlags.noCheckpoint {
		req.Checkpoint = utils.ToPointer(false)
	}

	return withServices(cmd, func(s *service.Service) error {
		result, err := s.ExplorationService.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
