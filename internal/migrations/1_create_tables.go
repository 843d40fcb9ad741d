package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/vkoshel/crmdata/importer/internal/models"
)

func init() {
	// Create the six-table schema. Every dependent table references
	// customers(customer_id) with ON DELETE CASCADE.
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewCreateTable().
			Model((*models.Customer)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewCreateTable().
			Model((*models.Company)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}

		dependents := []struct {
			model any
			fk    string
		}{
			{(*models.Contact)(nil), `("customer_id") REFERENCES "customers" ("customer_id") ON DELETE CASCADE`},
			{(*models.Subscription)(nil), `("customer_id") REFERENCES "customers" ("customer_id") ON DELETE CASCADE`},
			{(*models.Website)(nil), `("customer_id") REFERENCES "customers" ("customer_id") ON DELETE CASCADE`},
		}
		for _, d := range dependents {
			if _, err := db.NewCreateTable().
				Model(d.model).
				IfNotExists().
				ForeignKey(d.fk).
				Exec(ctx); err != nil {
				return err
			}
		}

		if _, err := db.NewCreateTable().
			Model((*models.CustomerCompany)(nil)).
			IfNotExists().
			ForeignKey(`("customer_id") REFERENCES "customers" ("customer_id") ON DELETE CASCADE`).
			ForeignKey(`("company_id") REFERENCES "companies" ("company_id") ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return err
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		modelsList := []any{
			(*models.CustomerCompany)(nil),
			(*models.Website)(nil),
			(*models.Subscription)(nil),
			(*models.Contact)(nil),
			(*models.Company)(nil),
			(*models.Customer)(nil),
		}

		for _, model := range modelsList {
			if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}
