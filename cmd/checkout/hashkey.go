package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var hashKeyCost int

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <api-key>",
	Short: "Hash an admin API key for ADMIN_API_KEY_HASH",
	Long: `Hash an admin API key for ADMIN_API_KEY_HASH.

Example:
  checkout hash-key "admin-key-12345"`,
	Args: cobra.ExactArgs(1),
	RunE: runHashKey,
}

func init() {
	hashKeyCmd.Flags().IntVar(&hashKeyCost, "cost", 10, "bcrypt cost")
}

func runHashKey(cmd *cobra.Command, args []string) error {
	apiKey := args[0]
	if len(apiKey) < 16 {
		return fmt.Errorf("api key must be at least 16 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), hashKeyCost)
	if err != nil {
		return fmt.Errorf("failed to hash API key: %w", err)
	}

	fmt.Printf("ADMIN_API_KEY_HASH=%s\n", hash)
	fmt.Printf("\nIMPORTANT: store the API key securely. Only the hash is kept in configuration.\n")
	fmt.Printf("\nUse this API key in the Authorization header:\n")
	fmt.Printf("Authorization: Bearer %s\n", apiKey)
	return nil
}
