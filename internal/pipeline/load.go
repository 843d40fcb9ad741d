package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"github.com/vkoshel/crmdata/importer/internal/models"
	"github.com/vkoshel/crmdata/importer/internal/notify"
	"github.com/vkoshel/crmdata/importer/internal/repositories"
	"github.com/vkoshel/crmdata/importer/internal/status"
)

// DefaultLoadBatchSize bounds the number of rows per INSERT statement and
// grains the per-table load progress.
const DefaultLoadBatchSize = 1000

// Progress map keys, one per loaded table.
const (
	TableCustomers         = "Customer Table"
	TableContacts          = "Contact Table"
	TableSubscriptions     = "Subscription Table"
	TableCustomerCompanies = "Customer Company Table"
	TableWebsites          = "Website Table"
)

// LoadResult reports the outcome of a load.
type LoadResult struct {
	Success bool
	Message string
}

// Loader persists the transform output inside a single transaction. Either
// every table reflects the run's inserts or none do.
type Loader struct {
	db        *bun.DB
	reg       *status.Register
	notifier  notify.Notifier
	batchSize int
}

// NewLoader creates a loader. batchSize <= 0 selects DefaultLoadBatchSize.
func NewLoader(db *bun.DB, reg *status.Register, notifier notify.Notifier, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultLoadBatchSize
	}
	return &Loader{db: db, reg: reg, notifier: notifier, batchSize: batchSize}
}

// Load writes companies, customers and dependents. Customer conflicts update
// only the email column; dependent inserts are conflict-ignore so a re-run
// with the same dataset never duplicates rows.
func (l *Loader) Load(ctx context.Context, result *TransformResult) LoadResult {
	start := time.Now()
	l.reg.SetStage(status.StageLoading, "Loading")

	err := l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		companyIDs, err := l.loadCompanies(ctx, tx, result.Companies)
		if err != nil {
			return fmt.Errorf("load companies: %w", err)
		}

		if err := l.loadCustomers(ctx, tx, result.Cleaned); err != nil {
			return fmt.Errorf("load customers: %w", err)
		}

		persisted, err := repositories.CustomerIDs(ctx, tx)
		if err != nil {
			return fmt.Errorf("read persisted customer ids: %w", err)
		}

		rows := buildDependentRows(result.Cleaned, persisted, companyIDs)
		if err := l.loadDependents(ctx, tx, rows); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		l.notifier.Notify(ctx, "Loading", time.Now())
		l.reg.Fail("Loading", err.Error())
		return LoadResult{Success: false, Message: fmt.Sprintf("load failed: %v", err)}
	}

	msg := fmt.Sprintf("Loaded %d customers in %s", len(result.Cleaned), time.Since(start).Round(time.Millisecond))
	l.reg.SetStage(status.StageComplete, msg)
	log.Printf("%s", msg)

	return LoadResult{Success: true, Message: msg}
}

// loadCompanies inserts company names with conflict-ignore semantics, then
// re-reads the full table into the run's company id map.
func (l *Loader) loadCompanies(ctx context.Context, tx bun.Tx, names map[string]struct{}) (map[string]int64, error) {
	if len(names) > 0 {
		companies := make([]*models.Company, 0, len(names))
		for name := range names {
			companies = append(companies, &models.Company{CompanyName: name})
		}
		// Deterministic insert order for reproducible surrogate ids.
		sort.Slice(companies, func(i, j int) bool {
			return companies[i].CompanyName < companies[j].CompanyName
		})

		if _, err := tx.NewInsert().
			Model(&companies).
			On("CONFLICT (company_name) DO NOTHING").
			Exec(ctx); err != nil {
			return nil, err
		}
	}

	return repositories.CompanyIDsByName(ctx, tx)
}

// loadCustomers batch-upserts the parent rows. On primary-key conflict only
// the email column is updated; all other columns keep their first-written
// values.
func (l *Loader) loadCustomers(ctx context.Context, tx bun.Tx, cleaned []models.CleanedRecord) error {
	customers := make([]*models.Customer, len(cleaned))
	for i := range cleaned {
		customers[i] = cleaned[i].Customer()
	}

	return applyBatched(customers, l.batchSize, func(batch []*models.Customer) error {
		_, err := tx.NewInsert().
			Model(&batch).
			On("CONFLICT (customer_id) DO UPDATE").
			Set("email = EXCLUDED.email").
			Exec(ctx)
		return err
	}, func(pct float64) {
		l.reg.SetLoadProgress(TableCustomers, pct)
	})
}

// dependentRows holds the child rows built for the accepted customers.
type dependentRows struct {
	contacts      []*models.Contact
	subscriptions []*models.Subscription
	companyLinks  []*models.CustomerCompany
	websites      []*models.Website
}

// buildDependentRows derives child rows for every cleaned record whose id
// was actually persisted. Records missing from the persisted set are logged
// and skipped entirely so no orphaned dependents are ever attempted,
// independent of the database's own constraint enforcement.
func buildDependentRows(cleaned []models.CleanedRecord, persisted map[string]struct{}, companyIDs map[string]int64) dependentRows {
	var rows dependentRows

	for i := range cleaned {
		rec := &cleaned[i]
		if _, ok := persisted[rec.CustomerID]; !ok {
			log.Printf("Load: customer %s not persisted, skipping dependents", rec.CustomerID)
			continue
		}

		for _, phone := range []string{rec.Phone1, rec.Phone2} {
			if models.IsSet(phone) {
				rows.contacts = append(rows.contacts, &models.Contact{
					CustomerID:  rec.CustomerID,
					PhoneNumber: phone,
				})
			}
		}
		if models.IsSet(rec.SubscriptionDate) {
			rows.subscriptions = append(rows.subscriptions, &models.Subscription{
				CustomerID:       rec.CustomerID,
				SubscriptionDate: rec.SubscriptionDate,
			})
		}
		if models.IsSet(rec.Company) {
			if companyID, ok := companyIDs[rec.Company]; ok {
				rows.companyLinks = append(rows.companyLinks, &models.CustomerCompany{
					CustomerID: rec.CustomerID,
					CompanyID:  companyID,
				})
			}
		}
		if models.IsSet(rec.Website) {
			rows.websites = append(rows.websites, &models.Website{
				CustomerID: rec.CustomerID,
				WebsiteURL: rec.Website,
			})
		}
	}

	return rows
}

// loadDependents batch-inserts each dependent set with conflict-ignore on
// its natural key, reporting per-table progress. Empty sets skip the insert
// but still mark their table complete.
func (l *Loader) loadDependents(ctx context.Context, tx bun.Tx, rows dependentRows) error {
	if err := applyBatched(rows.contacts, l.batchSize, func(batch []*models.Contact) error {
		_, err := tx.NewInsert().
			Model(&batch).
			On("CONFLICT (customer_id, phone_number) DO NOTHING").
			Exec(ctx)
		return err
	}, func(pct float64) {
		l.reg.SetLoadProgress(TableContacts, pct)
	}); err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}

	if err := applyBatched(rows.subscriptions, l.batchSize, func(batch []*models.Subscription) error {
		_, err := tx.NewInsert().
			Model(&batch).
			On("CONFLICT (customer_id) DO NOTHING").
			Exec(ctx)
		return err
	}, func(pct float64) {
		l.reg.SetLoadProgress(TableSubscriptions, pct)
	}); err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	if err := applyBatched(rows.companyLinks, l.batchSize, func(batch []*models.CustomerCompany) error {
		_, err := tx.NewInsert().
			Model(&batch).
			On("CONFLICT (customer_id, company_id) DO NOTHING").
			Exec(ctx)
		return err
	}, func(pct float64) {
		l.reg.SetLoadProgress(TableCustomerCompanies, pct)
	}); err != nil {
		return fmt.Errorf("load customer companies: %w", err)
	}

	if err := applyBatched(rows.websites, l.batchSize, func(batch []*models.Website) error {
		_, err := tx.NewInsert().
			Model(&batch).
			On("CONFLICT (customer_id) DO NOTHING").
			Exec(ctx)
		return err
	}, func(pct float64) {
		l.reg.SetLoadProgress(TableWebsites, pct)
	}); err != nil {
		return fmt.Errorf("load websites: %w", err)
	}

	return nil
}
