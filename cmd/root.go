package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "collectioner",
		Short: "AI-assisted product collection organizer for Shopify stores",
		Long: `Collectioner fetches the products of a Shopify store by tag, groups
them into collections using an LLM, and creates the collections and
memberships in the store.

Runs are idempotent: existing collections are reused by name and
products already in a collection are skipped, so a run can be safely
repeated after partial progress.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "collectioner.yaml", "Path to YAML config file")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newProbeCmd())

	return cmd
}

func configPathFromFlags(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return ""
	}
	return path
}
