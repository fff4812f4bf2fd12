package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/merchtools/collectioner/internal/config"
	"github.com/merchtools/collectioner/internal/pipeline"
	"github.com/merchtools/collectioner/internal/report"
	"github.com/merchtools/collectioner/internal/sync"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var shopURL, accessToken, tag, reportPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline once",
		Long: `Fetches all products matching the tag, classifies them into
collections, and syncs the collections to the store, logging progress
along the way.`,
		Example: `  # Classify all products tagged "featured"
  collectioner run --shop-url my-store.myshopify.com --tag featured

  # Save the sync outcome report
  collectioner run --tag featured --report runs/featured.parquet`,
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
			if tag == "" {
				return fmt.Errorf("--tag is required")
			}

			emit := func(event sync.Event) {
				switch event.Type {
				case sync.EventCollectionStart:
					slog.Info("Syncing collection", "collection", event.Collection, "products", event.Count)
				case sync.EventCollectionCreated:
					slog.Info("Collection ready", "collection", event.Collection, "id", event.CollectionID)
				case sync.EventCollectionError:
					slog.Error("Collection failed", "collection", event.Collection, "error", event.Message)
				case sync.EventProductAdded:
					slog.Debug("Product processed", "collection", event.Collection, "product", event.Product, "status", event.Status)
				case sync.EventComplete:
					slog.Info("Sync finished", "total", event.Total, "succeeded", event.SuccessCount)
				}
			}

			session, summary, err := pipeline.New(cfg).Run(cmd.Context(), shopURL, accessToken, tag, emit)
			if err != nil {
				return err
			}

			if summary.PermissionFailure != nil {
				slog.Error("The access token cannot create collections; reissue it with write_products scope",
					"error", summary.PermissionFailure)
			}

			if reportPath != "" {
				if err := report.FromRun(session, summary).Save(reportPath); err != nil {
					return fmt.Errorf("failed to save report: %w", err)
				}
				slog.Info("Report saved", "path", reportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&shopURL, "shop-url", "", "Shop URL, e.g. my-store.myshopify.com")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "Admin API access token")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Product tag to classify")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write the sync outcome report to this path (.parquet, .jsonl or .yaml)")

	return cmd
}
