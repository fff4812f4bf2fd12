package cmd

import (
	"fmt"
	"os"

	"github.com/merchtools/collectioner/internal/config"
	"github.com/merchtools/collectioner/internal/pipeline"
	"github.com/spf13/cobra"
)

func newProbeCmd() *cobra.Command {
	var shopURL, accessToken string

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check store permissions for the access token",
		Long: `Verifies that the access token can read products, read
collections, and create collections. The write check creates a
throwaway collection and deletes it again, leaving no residue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPathFromFlags(cmd))
			if err != nil {
				return err
			}

			if shopURL == "" {
				shopURL = os.Getenv("SHOPIFY_SHOP_URL")
			}
			if accessToken == "" {
				accessToken = os.Getenv("SHOPIFY_ACCESS_TOKEN")
			}
			if shopURL == "" || accessToken == "" {
				return fmt.Errorf("shop URL and access token are required (flags or SHOPIFY_SHOP_URL / SHOPIFY_ACCESS_TOKEN)")
			}

			result := pipeline.New(cfg).Probe(cmd.Context(), shopURL, accessToken)

			for _, capability := range result.Capabilities {
				status := "PASS"
				if !capability.Passed {
					status = "FAIL"
				}
				fmt.Printf("%-18s %s", capability.Name, status)
				if capability.Detail != "" {
					fmt.Printf("  (%s)", capability.Detail)
				}
				fmt.Println()
			}

			if !result.Passed {
				return fmt.Errorf("one or more permission checks failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&shopURL, "shop-url", "", "Shop URL, e.g. my-store.myshopify.com")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "Admin API access token")

	return cmd
}
