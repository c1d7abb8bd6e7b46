package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wtfashwin/Quiz-App/auth"
)

var (
	tokenName string
	tokenRole string
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Mint a signed identity token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		jwtCfg := jwtConfig(cfg.Auth)
		if jwtCfg == nil {
			return errors.New("auth.secret is not set")
		}

		token, err := auth.GenerateToken(jwtCfg, args[0], tokenName, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "player", "role claim (host or player)")
}
