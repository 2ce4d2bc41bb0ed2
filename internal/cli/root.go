// Package cli wires the decision engine behind a command-line surface. Every
// strategy command defaults to a dry run; live submission requires --live and
// an interactive confirmation (or --yes).
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockpilot/config"
	"stockpilot/internal/adapters/credstore"
	"stockpilot/internal/adapters/logger"
	"stockpilot/internal/adapters/schwabclient"
	"stockpilot/internal/adapters/sqlite"
	"stockpilot/internal/app"
	"stockpilot/internal/executor"
	"stockpilot/internal/ports"
)

// runtime bundles the wired application for one command invocation.
type runtime struct {
	cfg     *config.Config
	logger  ports.Logger
	repo    *sqlite.Repository
	gateway ports.BrokerGateway
	service *app.Service
}

func (rt *runtime) Close() {
	if rt.repo != nil {
		_ = rt.repo.Close()
	}
}

// newRuntime loads config and builds the adapter chain:
// credstore -> gateway -> mediator -> service, plus the audit repository.
func newRuntime(cmd *cobra.Command) (*runtime, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	levelOverride, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if levelOverride != "" {
		level = levelOverride
	}
	log := logger.New(logger.ParseLevel(level))

	store, err := credstore.New(credstore.Config{
		Path:   cfg.TokenPath,
		HexKey: cfg.EncryptionKey,
		Logger: log,
	})
	if err != nil {
		return nil, err
	}

	gateway, err := schwabclient.New(schwabclient.Config{
		APIKey:    cfg.APIKey,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
		Logger:    log,
		Store:     store,
	})
	if err != nil {
		return nil, err
	}

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: log})
	if err != nil {
		return nil, err
	}

	mediator, err := executor.New(executor.Config{
		Gateway:     gateway,
		Logger:      log,
		AccountID:   cfg.AccountID,
		Parallelism: cfg.SubmitParallelism,
		RatePerSec:  cfg.SubmitRatePerSec,
	})
	if err != nil {
		repo.Close()
		return nil, err
	}

	service, err := app.NewService(log, gateway, mediator, repo, cfg.AccountID)
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &runtime{cfg: cfg, logger: log, repo: repo, gateway: gateway, service: service}, nil
}

// NewRootCommand builds the stockpilot command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "stockpilot",
		Short:         "Rule-driven brokerage strategy engine",
		Long:          "stockpilot plans and executes recurring investment strategies (DCA, dividend reinvestment, rebalancing, dip buying and option overlays) against a brokerage account.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("env-file", "", "path to .env file (default: .env in working directory)")
	root.PersistentFlags().String("log-level", "", "log level override (DEBUG, INFO, WARN, ERROR)")

	root.AddCommand(
		newBalanceCommand(),
		newPositionsCommand(),
		newHistoryCommand(),
		newDCACommand(),
		newDRIPCommand(),
		newRebalanceCommand(),
		newOpportunisticCommand(),
		newCoveredCallsCommand(),
		newProtectivePutsCommand(),
		newScheduleCommand(),
	)
	return root
}

// Execute runs the root command and returns its exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	return 0
}
