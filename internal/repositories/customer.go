package repositories

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/vkoshel/crmdata/importer/internal/models"
)

// GetCustomerByID fetches a customer with all dependent rows.
func GetCustomerByID(ctx context.Context, db bun.IDB, customerID string) (*models.Customer, error) {
	customer := new(models.Customer)
	err := db.NewSelect().
		Model(customer).
		Where("cu.customer_id = ?", customerID).
		Relation("Contacts").
		Relation("Subscriptions").
		Relation("Websites").
		Relation("CompanyLinks").
		Scan(ctx)

	return customer, err
}

// CustomerIDs returns the set of persisted customer ids. The loader uses
// this as its referential safety net before inserting dependents.
func CustomerIDs(ctx context.Context, db bun.IDB) (map[string]struct{}, error) {
	var ids []string
	err := db.NewSelect().
		Model((*models.Customer)(nil)).
		Column("customer_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// CompanyIDsByName reads the full company table into a name-to-surrogate-id
// map. Lifetime of the map is one pipeline run.
func CompanyIDsByName(ctx context.Context, db bun.IDB) (map[string]int64, error) {
	var companies []*models.Company
	err := db.NewSelect().
		Model(&companies).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]int64, len(companies))
	for _, c := range companies {
		byName[c.CompanyName] = c.CompanyID
	}
	return byName, nil
}

// CountRows returns the row count for any model table.
func CountRows(ctx context.Context, db bun.IDB, model any) (int, error) {
	return db.NewSelect().Model(model).Count(ctx)
}

// CustomersByCountry counts persisted customers per country.
func CustomersByCountry(ctx context.Context, db bun.IDB) (map[string]int, error) {
	var rows []struct {
		Country string `bun:"country"`
		Count   int    `bun:"count"`
	}
	err := db.NewSelect().
		Model((*models.Customer)(nil)).
		Column("country").
		ColumnExpr("count(*) AS count").
		Group("country").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Country] = r.Count
	}
	return counts, nil
}
