package migrations

import (
	"context"

	"github.com/uptrace/bun"
)

func init() {
	// Lookup indexes for the status endpoint and per-country rollups.
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"CREATE INDEX IF NOT EXISTS idx_customers_country ON customers(country)",
			"CREATE INDEX IF NOT EXISTS idx_contacts_customer ON contacts(customer_id)",
			"CREATE INDEX IF NOT EXISTS idx_customer_companies_company ON customer_companies(company_id)",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		indexes := []string{
			"DROP INDEX IF EXISTS idx_customers_country",
			"DROP INDEX IF EXISTS idx_contacts_customer",
			"DROP INDEX IF EXISTS idx_customer_companies_company",
		}

		for _, idx := range indexes {
			if _, err := db.ExecContext(ctx, idx); err != nil {
				return err
			}
		}

		return nil
	})
}
