package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"stockpilot/config"
	"stockpilot/internal/app"
	"stockpilot/internal/domain"
)

// addExecutionFlags attaches the shared execution flags. Dry run is the
// default; --live submits real orders and prompts unless --yes is given.
func addExecutionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("live", false, "submit real orders instead of previewing")
	cmd.Flags().Bool("yes", false, "skip the live-mode confirmation prompt")
}

// runStrategy wires a runtime, resolves the execution mode and runs one
// strategy end to end.
func runStrategy(cmd *cobra.Command, name string, params func(cfg *config.Config) app.StrategyParams) error {
	live, _ := cmd.Flags().GetBool("live")
	yes, _ := cmd.Flags().GetBool("yes")

	mode := domain.ModeDryRun
	if live {
		mode = domain.ModeLive
		if !yes && !confirmLive(cmd) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	batch, err := rt.service.Run(cmd.Context(), name, params(rt.cfg), mode)
	if err != nil {
		return err
	}
	renderBatch(cmd.OutOrStdout(), batch)
	return nil
}

func confirmLive(cmd *cobra.Command) bool {
	fmt.Fprint(cmd.OutOrStdout(), "Live mode will submit real orders to your brokerage account. Continue? [y/N]: ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func splitSymbols(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func newDCACommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dca",
		Short: "Dollar-cost average a fixed amount across symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			symbolsCSV, _ := cmd.Flags().GetString("symbols")
			amount, _ := cmd.Flags().GetFloat64("amount")
			return runStrategy(cmd, "dca", func(cfg *config.Config) app.StrategyParams {
				p := app.StrategyParams{Symbols: cfg.DCASymbols, TotalAmount: cfg.DCAAmount}
				if cmd.Flags().Changed("symbols") {
					p.Symbols = splitSymbols(symbolsCSV)
				}
				if cmd.Flags().Changed("amount") {
					p.TotalAmount = amount
				}
				return p
			})
		},
	}
	cmd.Flags().String("symbols", "", "comma-separated symbols (default: DCA_SYMBOLS)")
	cmd.Flags().Float64("amount", 0, "total dollar amount to invest (default: DCA_AMOUNT)")
	addExecutionFlags(cmd)
	return cmd
}

func newDRIPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drip",
		Short: "Reinvest available cash proportionally across holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cash, _ := cmd.Flags().GetFloat64("cash")
			return runStrategy(cmd, "drip", func(cfg *config.Config) app.StrategyParams {
				return app.StrategyParams{AvailableCash: cash}
			})
		},
	}
	cmd.Flags().Float64("cash", 0, "cash to reinvest (default: account cash available)")
	addExecutionFlags(cmd)
	return cmd
}

func newRebalanceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Rebalance holdings toward the target allocation",
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			return runStrategy(cmd, "rebalance", func(cfg *config.Config) app.StrategyParams {
				p := app.StrategyParams{TargetAllocation: cfg.TargetAllocation, Threshold: cfg.RebalanceThreshold}
				if cmd.Flags().Changed("threshold") {
					p.Threshold = threshold
				}
				return p
			})
		},
	}
	cmd.Flags().Float64("threshold", 0, "drift threshold before trading (default: REBALANCE_THRESHOLD)")
	addExecutionFlags(cmd)
	return cmd
}

func newOpportunisticCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opportunistic",
		Short: "Buy watchlist symbols trading at a dip",
		RunE: func(cmd *cobra.Command, args []string) error {
			symbolsCSV, _ := cmd.Flags().GetString("symbols")
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			amount, _ := cmd.Flags().GetFloat64("amount")
			return runStrategy(cmd, "opportunistic", func(cfg *config.Config) app.StrategyParams {
				p := app.StrategyParams{
					Symbols:         cfg.DCASymbols,
					DipThreshold:    cfg.OpportunisticDipThreshold,
					BuyAmountPerHit: cfg.OpportunisticBuyAmount,
				}
				if cmd.Flags().Changed("symbols") {
					p.Symbols = splitSymbols(symbolsCSV)
				}
				if cmd.Flags().Changed("threshold") {
					p.DipThreshold = threshold
				}
				if cmd.Flags().Changed("amount") {
					p.BuyAmountPerHit = amount
				}
				return p
			})
		},
	}
	cmd.Flags().String("symbols", "", "comma-separated watchlist (default: DCA_SYMBOLS)")
	cmd.Flags().Float64("threshold", 0, "dip threshold as a fraction (default: OPPORTUNISTIC_DIP_THRESHOLD)")
	cmd.Flags().Float64("amount", 0, "dollar amount per triggered symbol (default: OPPORTUNISTIC_BUY_AMOUNT)")
	addExecutionFlags(cmd)
	return cmd
}

func addOptionFlags(cmd *cobra.Command) {
	cmd.Flags().String("symbols", "", "restrict to these underlyings (default: all eligible positions)")
	cmd.Flags().Int("dte", 0, "minimum days to expiry (default: OPTIONS_DAYS_TO_EXPIRY)")
	cmd.Flags().Float64("otm", 0, "out-of-the-money fraction for strike targeting (default: OPTIONS_OTM_PERCENTAGE)")
	addExecutionFlags(cmd)
}

func optionParams(cmd *cobra.Command, cfg *config.Config) app.StrategyParams {
	symbolsCSV, _ := cmd.Flags().GetString("symbols")
	dte, _ := cmd.Flags().GetInt("dte")
	otm, _ := cmd.Flags().GetFloat64("otm")

	p := app.StrategyParams{DaysToExpiry: cfg.OptionsDTE, OTMPercentage: cfg.OptionsOTM}
	if cmd.Flags().Changed("symbols") {
		p.Symbols = splitSymbols(symbolsCSV)
	}
	if cmd.Flags().Changed("dte") {
		p.DaysToExpiry = dte
	}
	if cmd.Flags().Changed("otm") {
		p.OTMPercentage = otm
	}
	return p
}

func newCoveredCallsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "covered-calls",
		Short: "Sell covered calls against positions of 100+ shares",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrategy(cmd, "covered_calls", func(cfg *config.Config) app.StrategyParams {
				return optionParams(cmd, cfg)
			})
		},
	}
	addOptionFlags(cmd)
	return cmd
}

func newProtectivePutsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protective-puts",
		Short: "Buy protective puts under positions of 100+ shares",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrategy(cmd, "protective_puts", func(cfg *config.Config) app.StrategyParams {
				return optionParams(cmd, cfg)
			})
		},
	}
	addOptionFlags(cmd)
	return cmd
}
