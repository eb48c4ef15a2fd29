package cmd

import (
	"fmt"
	"time"

	"github.com/malwarebo/condopay/models"
	"github.com/malwarebo/condopay/security"
	"github.com/malwarebo/condopay/utils"
	"github.com/spf13/cobra"
)

var tokenOpts struct {
	userID string
	email  string
	role   string
	ttl    time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local development",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.IsProduction() {
			return fmt.Errorf("token minting is disabled in production")
		}

		if verr := utils.ValidateUUID(tokenOpts.userID, "user"); verr != nil {
			return fmt.Errorf("--user %s", verr.Message)
		}
		role := models.Role(tokenOpts.role)
		if !role.IsValid() {
			return fmt.Errorf("--role must be admin or owner")
		}

		ttl := tokenOpts.ttl
		if ttl <= 0 {
			ttl = cfg.Security.JWTExpiration
		}

		manager := security.CreateJWTManager(cfg.Security.JWTSecret, security.DefaultIssuer, security.DefaultAudience)
		token, err := manager.GenerateToken(tokenOpts.userID, tokenOpts.email, string(role), ttl)
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOpts.userID, "user", "", "user id (uuid)")
	tokenCmd.Flags().StringVar(&tokenOpts.email, "email", "", "email claim")
	tokenCmd.Flags().StringVar(&tokenOpts.role, "role", string(models.RoleAdmin), "admin or owner")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 0, "token lifetime (defaults to the configured expiration)")
	tokenCmd.MarkFlagRequired("user")
}
