package cmd

import (
	"fmt"
	"io"

	"strategy-lab/internal/codec"
	"strategy-lab/internal/dto"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
)

type keyEncodeOptions struct {
	buyRule  string
	decline  float64
	mode     int
	quantity float64
	stopLoss float64
	sellRule int
	profit   string
}

var keyFlags keyEncodeOptions

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Encode and decode strategy keys",
}

var keyEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build the canonical key of a strategy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := encodeKey(codec.NewCodec(goValidator.New()), keyFlags)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var keyDecodeCmd = &cobra.Command{
	Use:   "decode <key>",
	Short: "Print the strategy behind a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decodeKey(cmd.OutOrStdout(), codec.NewCodec(goValidator.New()), dto.StrategyKey(args[0]))
	},
}

func init() {
	flags := keyEncodeCmd.Flags()
	flags.StringVar(&keyFlags.buyRule, "buy", "SM", "buy rule code")
	flags.Float64Var(&keyFlags.decline, "decline", 0, "buy decline threshold in percent")
	flags.IntVar(&keyFlags.mode, "mode", int(dto.PurchaseModePercent), "purchase mode: 1 percent of cash, 2 fixed shares")
	flags.Float64Var(&keyFlags.quantity, "quantity", 0.5, "purchase quantity")
	flags.Float64Var(&keyFlags.stopLoss, "stop-loss", -5, "stop loss threshold in percent")
	flags.IntVar(&keyFlags.sellRule, "sell", int(dto.SellRuleLumpSum), "sell rule type (1-5)")
	flags.StringVar(&keyFlags.profit, "profit", "5.0", "profit parameter token, e.g. 4.5, 3.0,1.0 or 7")

	keyCmd.AddCommand(keyEncodeCmd)
	keyCmd.AddCommand(keyDecodeCmd)
}

func encodeKey(keys codec.StrategyKeyCodec, opts keyEncodeOptions) (dto.StrategyKey, error) {
	sellRule := dto.SellRuleType(opts.sellRule)
	profit, err := codec.ParseProfit(sellRule, opts.profit)
	if err != nil {
		return "", err
	}
	return keys.Encode(dto.StrategySpec{
		BuyRule:             dto.BuyRuleType(opts.buyRule),
		BuyDeclineThreshold: opts.decline,
		PurchaseMode:        dto.PurchaseMode(opts.mode),
		PurchaseQuantity:    opts.quantity,
		StopLossThreshold:   opts.stopLoss,
		SellRule:            sellRule,
		Profit:              profit,
	})
}

func decodeKey(w io.Writer, keys codec.StrategyKeyCodec, key dto.StrategyKey) error {
	spec, err := keys.Decode(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, keys.Describe(spec))
	return printJSON(w, spec)
}
