package cmd

import (
	"fmt"

	"strategy-lab/internal/dto"
	"strategy-lab/internal/service"

	"github.com/spf13/cobra"
)

var banCondition string

var exclusionsCmd = &cobra.Command{
	Use:   "exclusions",
	Short: "Inspect and edit the exclusion registry",
}

var exclusionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print registry sizes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *service.Service) error {
			return printJSON(cmd.OutOrStdout(), s.ExclusionCache.Stats(cmd.Context()))
		})
	},
}

var exclusionsInspectCmd = &cobra.Command{
	Use:   "inspect <key>",
	Short: "Show dropout count, penalty and exclusion scope of a strategy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd, func(s *service.Service) error {
			spec, err := s.Codec.Decode(dto.StrategyKey(args[0]))
			if err != nil {
				return err
			}
			info, err := s.ExclusionCache.Info(cmd.Context(), spec)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		})
	},
}

var exclusionsBanCmd = &cobra.Command{
	Use:   "ban <key>",
	Short: "Exclude a strategy permanently, or for one market condition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withServices(cmd, func(s *service.Service) error {
			spec, err := s.Codec.Decode(dto.StrategyKey(args[0]))
			if err != nil {
				return err
			}
			if banCondition == "" {
				err = s.ExclusionCache.AddPermanentExclusion(ctx, spec)
			} else {
				condition, perr := dto.ParseMarketCondition(banCondition)
				if perr != nil {
					return perr
				}
				err = s.ExclusionCache.AddMarketExclusion(ctx, spec, condition)
			}
			if err != nil {
				return err
			}
			if err := s.ExclusionCache.Save(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "excluded %s\n", args[0])
			return nil
		})
	},
}

func init() {
	exclusionsBanCmd.Flags().StringVar(&banCondition, "condition", "", "market condition to exclude in (default permanent)")

	exclusionsCmd.AddCommand(exclusionsStatsCmd)
	exclusionsCmd.AddCommand(exclusionsInspectCmd)
	exclusionsCmd.AddCommand(exclusionsBanCmd)
}
