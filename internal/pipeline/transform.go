package pipeline

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/vkoshel/crmdata/importer/internal/models"
	"github.com/vkoshel/crmdata/importer/internal/notify"
	"github.com/vkoshel/crmdata/importer/internal/status"
)

// DefaultChunkSize is the number of records processed between transform
// progress updates. Chunking never changes the transform result.
const DefaultChunkSize = 1000

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// invalidEmailPrefix marks an email that failed validation. The record is
// kept; the value is tagged instead of dropped.
const invalidEmailPrefix = "Invalid Email - "

// TransformResult bundles the cleaned records with the aggregates computed
// alongside them.
type TransformResult struct {
	Cleaned                []models.CleanedRecord
	Companies              map[string]struct{}
	CountryCounts          map[string]int
	AvgCustomersPerCountry float64
	Duplicates             int
}

// Transformer deduplicates, normalizes and validates the extracted records
// entirely in memory.
type Transformer struct {
	reg       *status.Register
	notifier  notify.Notifier
	chunkSize int
}

// NewTransformer creates a transformer. chunkSize <= 0 selects
// DefaultChunkSize.
func NewTransformer(reg *status.Register, notifier notify.Notifier, chunkSize int) *Transformer {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Transformer{reg: reg, notifier: notifier, chunkSize: chunkSize}
}

// Transform is deterministic for identical input order: dedup by customer id
// (first occurrence wins), date and phone normalization, email tagging, and
// company/country aggregation. No partial output is returned on failure.
func (t *Transformer) Transform(ctx context.Context, records []models.RawRecord) (result *TransformResult, err error) {
	start := time.Now()
	t.reg.SetStage(status.StageTransforming, "Transforming")

	// The cleaning steps are pure computation; a panic here means a record
	// of unexpected shape and aborts the whole transform.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform fault: %v", r)
		}
		if err != nil {
			result = nil
			t.notifier.Notify(ctx, "Transformation", time.Now())
			t.reg.Fail("Transformation", err.Error())
		}
	}()

	result = &TransformResult{
		Cleaned:       make([]models.CleanedRecord, 0, len(records)),
		Companies:     make(map[string]struct{}),
		CountryCounts: make(map[string]int),
	}

	seen := make(map[string]struct{}, len(records))
	missingByField := make(map[string]int)

	total := len(records)
	for chunkStart := 0; chunkStart < total; chunkStart += t.chunkSize {
		chunkEnd := min(chunkStart+t.chunkSize, total)

		for _, raw := range records[chunkStart:chunkEnd] {
			id := raw.Get(models.ColCustomerID)
			if _, dup := seen[id]; dup {
				result.Duplicates++
				continue
			}
			seen[id] = struct{}{}

			cleaned := cleanRecord(raw)
			for _, f := range cleaned.MissingFields() {
				missingByField[f]++
			}
			if models.IsSet(cleaned.Company) {
				result.Companies[cleaned.Company] = struct{}{}
			}
			if models.IsSet(cleaned.Country) {
				result.CountryCounts[cleaned.Country]++
			}
			result.Cleaned = append(result.Cleaned, cleaned)
		}

		t.reg.SetTransformProgress(float64(chunkEnd) / float64(total) * 100)
	}

	if len(result.CountryCounts) > 0 {
		result.AvgCustomersPerCountry = float64(len(result.Cleaned)) / float64(len(result.CountryCounts))
	}

	for field, n := range missingByField {
		log.Printf("Transform: %d records missing %s", n, field)
	}
	if result.Duplicates > 0 {
		log.Printf("Transform: discarded %d duplicate customer ids", result.Duplicates)
	}

	t.reg.SetTransformProgress(100)
	t.reg.SetAvgCustomersPerCountry(result.AvgCustomersPerCountry)
	t.reg.SetStage(status.StageTransforming, "Transformed")
	log.Printf("Transformed %d records (%d duplicates) in %s",
		len(result.Cleaned), result.Duplicates, time.Since(start).Round(time.Millisecond))

	return result, nil
}

func cleanRecord(raw models.RawRecord) models.CleanedRecord {
	return models.CleanedRecord{
		CustomerID:       raw.Get(models.ColCustomerID),
		FirstName:        raw.Get(models.ColFirstName),
		LastName:         raw.Get(models.ColLastName),
		City:             raw.Get(models.ColCity),
		Country:          raw.Get(models.ColCountry),
		Email:            cleanEmail(raw.Get(models.ColEmail)),
		Phone1:           cleanPhone(raw.Get(models.ColPhone1)),
		Phone2:           cleanPhone(raw.Get(models.ColPhone2)),
		Company:          raw.Get(models.ColCompany),
		SubscriptionDate: normalizeDate(raw.Get(models.ColSubscriptionDate)),
		Website:          raw.Get(models.ColWebsite),
	}
}

// normalizeDate rewrites M/D/YYYY values to YYYY-MM-DD. Anything else,
// including the sentinel, passes through unchanged.
func normalizeDate(v string) string {
	if !models.IsSet(v) {
		return v
	}
	if strings.Count(v, "/") != 2 {
		return v
	}
	parsed, err := time.Parse("1/2/2006", v)
	if err != nil {
		return v
	}
	return parsed.Format("2006-01-02")
}

// cleanEmail tags syntactically invalid emails rather than rejecting the
// record. The sentinel is not a valid address, so it is tagged too.
func cleanEmail(v string) string {
	if emailPattern.MatchString(v) {
		return v
	}
	return invalidEmailPrefix + v
}

// cleanPhone strips everything except digits and a single leading plus.
// Sentinel values are preserved as-is.
func cleanPhone(v string) string {
	if !models.IsSet(v) {
		return v
	}
	number, ext, hasExt := cutExtension(v)
	var b strings.Builder
	b.Grow(len(v))
	if strings.HasPrefix(number, "+") {
		b.WriteByte('+')
	}
	b.WriteString(phoneDigits(number))
	if hasExt {
		// An extension dials as a bare number, so its leading zeros are
		// dropped. "x0742" contributes "742".
		b.WriteString(strings.TrimLeft(phoneDigits(ext), "0"))
	}
	return b.String()
}

// cutExtension splits a raw phone value at the first extension marker.
func cutExtension(v string) (string, string, bool) {
	if i := strings.IndexAny(v, "xX"); i >= 0 {
		return v[:i], v[i+1:], true
	}
	return v, "", false
}

func phoneDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
