package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jafarshop/checkoutapi/internal/domain"
	"github.com/jafarshop/checkoutapi/internal/provider"
	"github.com/jafarshop/checkoutapi/internal/repository/postgres"
)

var statusPoll bool

var statusCmd = &cobra.Command{
	Use:   "status <provider> <transaction-id>",
	Short: "Show a payment intent and what the provider currently reports",
	Long: `Show a payment intent and what the provider currently reports.
Nothing is written: reconciliation happens through the API.

Providers: paypal, mtn_momo, orange_money

Examples:
  checkout status mtn_momo 6f1c0d1e-8d0c-4a7b-9a57-4fb4f9b4a001
  checkout status orange_money ORANGE-0123456789AB --poll=false`,
	Args: cobra.ExactArgs(2),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusPoll, "poll", true, "query the provider for its current status")
}

func runStatus(cmd *cobra.Command, args []string) error {
	p := domain.Provider(args[0])
	if !p.IsValid() {
		return fmt.Errorf("unknown provider %q", args[0])
	}
	transactionID := args[1]

	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := postgres.NewConnection(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	repos := postgres.NewRepositories(db, logger)
	pending, err := repos.PendingOrder.GetByTransaction(cmd.Context(), p, transactionID)
	if err != nil {
		return err
	}

	fmt.Printf("Provider:       %s\n", pending.Provider)
	fmt.Printf("Transaction ID: %s\n", pending.TransactionID)
	fmt.Printf("Status:         %s\n", pending.Status)
	fmt.Printf("Total:          %d XAF\n", pending.TotalCFA)
	if pending.AmountValue.Valid {
		fmt.Printf("Charged:        %s %s\n", pending.AmountValue.Decimal.StringFixed(2), pending.Currency)
	}
	fmt.Printf("Email:          %s\n", pending.BillingSnapshot.Email)
	fmt.Printf("Created:        %s\n", pending.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Lines:          %d\n", len(pending.CartSnapshot))
	printJSON("Stored provider response", pending.ProviderResponse)

	if !statusPoll {
		return nil
	}

	registry := provider.NewRegistry(cfg, provider.NoopTokenCache{}, logger)
	client, err := registry.Get(p)
	if err != nil {
		return err
	}

	result, err := client.PollStatus(cmd.Context(), transactionID)
	if err != nil {
		return fmt.Errorf("poll %s: %w", p, err)
	}

	fmt.Printf("\nProvider status: %s (normalized: %s)\n", result.ProviderStatus, result.Outcome)
	printJSON("Provider response", result.Raw)
	return nil
}

func printJSON(title string, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var pretty any
	if err := json.Unmarshal(raw, &pretty); err != nil {
		return
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Printf("\n%s:\n%s\n", title, out)
}
