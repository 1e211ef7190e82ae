// Command token mints and inspects gateway tokens for partner identities,
// for local development against the chat gateway.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Rrens/partner-chat/internal/domain"
	"github.com/Rrens/partner-chat/internal/security"
)

var (
	secret      string
	partnerUUID string
	hospitalID  string
	ttl         time.Duration
)

var rootCmd = &cobra.Command{
	Use:          "token",
	Short:        "Mint and inspect partner chat gateway tokens",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if secret == "" {
			return fmt.Errorf("no signing secret: pass --secret or set JWT_SECRET")
		}
		return nil
	},
}

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Sign a token for a partner identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if partnerUUID == "" {
			partnerUUID = uuid.NewString()
		} else if _, err := uuid.Parse(partnerUUID); err != nil {
			return fmt.Errorf("invalid uuid %q: %w", partnerUUID, err)
		}

		token, err := manager().GenerateToken(domain.Identity{
			UUID:       partnerUUID,
			HospitalID: hospitalID,
		})
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Validate a token and print the identity it carries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		claims, err := manager().ValidateToken(args[0])
		if err != nil {
			return err
		}

		id := claims.Identity()
		expires := "never"
		if claims.ExpiresAt != nil {
			expires = claims.ExpiresAt.Time.Format(time.RFC3339)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uuid:        %s\nhospital_id: %s\nexpires_at:  %s\n",
			id.UUID, id.HospitalID, expires)
		return nil
	},
}

func manager() *security.JWTManager {
	return security.NewJWTManager(secret, ttl)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "signing secret (defaults to $JWT_SECRET)")

	mintCmd.Flags().StringVar(&partnerUUID, "uuid", "", "partner user uuid (random when empty)")
	mintCmd.Flags().StringVar(&hospitalID, "hospital", "", "hospital id")
	mintCmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	mintCmd.MarkFlagRequired("hospital")

	rootCmd.AddCommand(mintCmd, verifyCmd)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// the default of --secret is read after .env is loaded
	if s := os.Getenv("JWT_SECRET"); s != "" && secret == "" {
		secret = s
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
