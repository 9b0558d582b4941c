package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jafarshop/checkoutapi/internal/repository/postgres"
)

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Mark payment intents pending longer than PENDING_ORDER_TTL as expired",
	RunE:  runExpire,
}

func runExpire(cmd *cobra.Command, args []string) error {
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

	checkout, closeTokens := newCheckoutService(cmd.Context(), cfg, postgres.NewRepositories(db, logger), logger)
	defer closeTokens()

	expired, err := checkout.ExpireStale(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Expired %d payment intent(s)\n", expired)
	return nil
}
