package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/vkoshel/crmdata/importer/internal/database"
	"github.com/vkoshel/crmdata/importer/internal/migrations"
	"github.com/vkoshel/crmdata/importer/internal/models"
	"github.com/vkoshel/crmdata/importer/internal/repositories"
	"github.com/vkoshel/crmdata/importer/internal/status"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := database.NewDB(dsn, false)
	require.NoError(t, err)
	// A single connection keeps the shared in-memory database alive for the
	// test's duration.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.RunMigrations(context.Background(), db))
	return db
}

func newLoader(t *testing.T, db *bun.DB, batchSize int) (*Loader, *status.Register, *recordingNotifier) {
	t.Helper()
	reg := status.NewRegister()
	notifier := &recordingNotifier{}
	return NewLoader(db, reg, notifier, batchSize), reg, notifier
}

func cleanedRecord(id string, mutate func(*models.CleanedRecord)) models.CleanedRecord {
	rec := models.CleanedRecord{
		CustomerID:       id,
		FirstName:        "Jamie",
		LastName:         "Rivera",
		City:             "Lisbon",
		Country:          "Portugal",
		Email:            id + "@example.com",
		Phone1:           "7573248634",
		Phone2:           models.Sentinel,
		Company:          "Acme Ltd",
		SubscriptionDate: "2020-03-27",
		Website:          "https://example.com",
	}
	if mutate != nil {
		mutate(&rec)
	}
	return rec
}

func transformResultFor(records ...models.CleanedRecord) *TransformResult {
	result := &TransformResult{
		Cleaned:       records,
		Companies:     make(map[string]struct{}),
		CountryCounts: make(map[string]int),
	}
	for _, r := range records {
		if models.IsSet(r.Company) {
			result.Companies[r.Company] = struct{}{}
		}
		if models.IsSet(r.Country) {
			result.CountryCounts[r.Country]++
		}
	}
	return result
}

func countRows(t *testing.T, db bun.IDB, model any) int {
	t.Helper()
	n, err := repositories.CountRows(context.Background(), db, model)
	require.NoError(t, err)
	return n
}

func TestLoadInsertsAllTables(t *testing.T) {
	db := newTestDB(t)
	loader, reg, _ := newLoader(t, db, 2)
	ctx := context.Background()

	result := loader.Load(ctx, transformResultFor(
		cleanedRecord("c1", nil),
		cleanedRecord("c2", func(r *models.CleanedRecord) {
			r.Company = "Globex"
			r.Phone2 = "+12132120464742"
		}),
		cleanedRecord("c3", func(r *models.CleanedRecord) {
			r.Company = models.Sentinel
			r.SubscriptionDate = models.Sentinel
			r.Website = models.Sentinel
			r.Phone1 = models.Sentinel
		}),
	))
	require.True(t, result.Success, result.Message)

	require.Equal(t, 3, countRows(t, db, (*models.Customer)(nil)))
	require.Equal(t, 3, countRows(t, db, (*models.Contact)(nil)), "c1: 1 phone, c2: 2 phones, c3: none")
	require.Equal(t, 2, countRows(t, db, (*models.Subscription)(nil)))
	require.Equal(t, 2, countRows(t, db, (*models.Company)(nil)))
	require.Equal(t, 2, countRows(t, db, (*models.CustomerCompany)(nil)))
	require.Equal(t, 2, countRows(t, db, (*models.Website)(nil)))

	snap := reg.Snapshot()
	require.Equal(t, status.StageComplete, snap.Stage)
	require.Equal(t, 100.0, snap.Progress.Load[TableCustomers])
	require.Equal(t, 100.0, snap.Progress.Load[TableContacts])
	require.Equal(t, 100.0, snap.Progress.Load[TableSubscriptions])
	require.Equal(t, 100.0, snap.Progress.Load[TableCustomerCompanies])
	require.Equal(t, 100.0, snap.Progress.Load[TableWebsites])

	full, err := repositories.GetCustomerByID(ctx, db, "c2")
	require.NoError(t, err)
	require.Len(t, full.Contacts, 2)
	require.Len(t, full.CompanyLinks, 1)
}

func TestLoadIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	loader, _, _ := newLoader(t, db, 0)
	ctx := context.Background()

	dataset := transformResultFor(cleanedRecord("c1", nil), cleanedRecord("c2", nil))

	require.True(t, loader.Load(ctx, dataset).Success)
	require.True(t, loader.Load(ctx, dataset).Success)

	require.Equal(t, 2, countRows(t, db, (*models.Customer)(nil)))
	require.Equal(t, 2, countRows(t, db, (*models.Contact)(nil)))
	require.Equal(t, 2, countRows(t, db, (*models.Subscription)(nil)))
	require.Equal(t, 1, countRows(t, db, (*models.Company)(nil)))
	require.Equal(t, 2, countRows(t, db, (*models.CustomerCompany)(nil)))
	require.Equal(t, 2, countRows(t, db, (*models.Website)(nil)))
}

func TestLoadUpsertUpdatesOnlyEmail(t *testing.T) {
	db := newTestDB(t)
	loader, _, _ := newLoader(t, db, 0)
	ctx := context.Background()

	require.True(t, loader.Load(ctx, transformResultFor(cleanedRecord("c1", nil))).Success)

	require.True(t, loader.Load(ctx, transformResultFor(cleanedRecord("c1", func(r *models.CleanedRecord) {
		r.Email = "new@example.com"
		r.City = "Porto"
	}))).Success)

	customer, err := repositories.GetCustomerByID(ctx, db, "c1")
	require.NoError(t, err)
	require.Equal(t, "new@example.com", customer.Email)
	require.Equal(t, "Lisbon", customer.City, "non-email columns keep their first-written values")
}

func TestLoadRollsBackAtomically(t *testing.T) {
	db := newTestDB(t)
	loader, reg, notifier := newLoader(t, db, 0)
	ctx := context.Background()

	// Two distinct customer ids sharing an email: the second insert violates
	// the email unique constraint after the first customer row is written.
	result := loader.Load(ctx, transformResultFor(
		cleanedRecord("c1", func(r *models.CleanedRecord) { r.Email = "same@example.com" }),
		cleanedRecord("c2", func(r *models.CleanedRecord) { r.Email = "same@example.com" }),
	))
	require.False(t, result.Success)
	require.Equal(t, []string{"Loading"}, notifier.Stages())

	require.Zero(t, countRows(t, db, (*models.Customer)(nil)))
	require.Zero(t, countRows(t, db, (*models.Contact)(nil)))
	require.Zero(t, countRows(t, db, (*models.Subscription)(nil)))
	require.Zero(t, countRows(t, db, (*models.Company)(nil)))
	require.Zero(t, countRows(t, db, (*models.CustomerCompany)(nil)))
	require.Zero(t, countRows(t, db, (*models.Website)(nil)))

	snap := reg.Snapshot()
	require.Equal(t, status.StageFailed, snap.Stage)
	require.Equal(t, "Loading", snap.FailedStage)
	require.NotEmpty(t, snap.Reason)
}

func TestBuildDependentRowsSkipsUnpersistedCustomers(t *testing.T) {
	cleaned := []models.CleanedRecord{
		cleanedRecord("c1", nil),
		cleanedRecord("ghost", nil),
	}
	persisted := map[string]struct{}{"c1": {}}
	companies := map[string]int64{"Acme Ltd": 7}

	rows := buildDependentRows(cleaned, persisted, companies)

	require.Len(t, rows.contacts, 1)
	require.Len(t, rows.subscriptions, 1)
	require.Len(t, rows.companyLinks, 1)
	require.Len(t, rows.websites, 1)
	for _, c := range rows.contacts {
		require.Equal(t, "c1", c.CustomerID)
	}
	require.Equal(t, int64(7), rows.companyLinks[0].CompanyID)
}

func TestBuildDependentRowsHonorsSentinels(t *testing.T) {
	cleaned := []models.CleanedRecord{
		cleanedRecord("c1", func(r *models.CleanedRecord) {
			r.Phone1 = models.Sentinel
			r.Phone2 = models.Sentinel
			r.SubscriptionDate = models.Sentinel
			r.Company = models.Sentinel
			r.Website = models.Sentinel
		}),
	}
	persisted := map[string]struct{}{"c1": {}}

	rows := buildDependentRows(cleaned, persisted, nil)

	require.Empty(t, rows.contacts)
	require.Empty(t, rows.subscriptions)
	require.Empty(t, rows.companyLinks)
	require.Empty(t, rows.websites)
}

func TestBuildDependentRowsUnknownCompanyIsSkipped(t *testing.T) {
	cleaned := []models.CleanedRecord{cleanedRecord("c1", nil)}
	persisted := map[string]struct{}{"c1": {}}

	rows := buildDependentRows(cleaned, persisted, map[string]int64{"Someone Else": 1})

	require.Empty(t, rows.companyLinks)
	require.Len(t, rows.websites, 1)
}

func TestCascadeDeleteRemovesDependents(t *testing.T) {
	db := newTestDB(t)
	loader, _, _ := newLoader(t, db, 0)
	ctx := context.Background()

	require.True(t, loader.Load(ctx, transformResultFor(cleanedRecord("c1", nil))).Success)

	_, err := db.NewDelete().
		Model((*models.Customer)(nil)).
		Where("customer_id = ?", "c1").
		Exec(ctx)
	require.NoError(t, err)

	require.Zero(t, countRows(t, db, (*models.Contact)(nil)))
	require.Zero(t, countRows(t, db, (*models.Subscription)(nil)))
	require.Zero(t, countRows(t, db, (*models.CustomerCompany)(nil)))
	require.Zero(t, countRows(t, db, (*models.Website)(nil)))
	require.Equal(t, 1, countRows(t, db, (*models.Company)(nil)), "companies are not customer dependents")
}
