package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/vkoshel/crmdata/importer/internal/models"
	"github.com/vkoshel/crmdata/importer/internal/notify"
	"github.com/vkoshel/crmdata/importer/internal/status"
)

// ErrSourceNotFound is returned when the configured source file does not
// exist or cannot be opened.
var ErrSourceNotFound = errors.New("source file not found")

// Extractor reads the delimited source file into memory. Extraction is
// all-or-nothing: any row-level stream error discards the partial buffer.
type Extractor struct {
	reg      *status.Register
	notifier notify.Notifier
}

// NewExtractor creates an extractor reporting to the given register.
func NewExtractor(reg *status.Register, notifier notify.Notifier) *Extractor {
	return &Extractor{reg: reg, notifier: notifier}
}

// Extract reads every row of the source file, substituting the sentinel for
// any missing or empty field. Duplicates are kept; filtering them is the
// transformer's job.
func (e *Extractor) Extract(ctx context.Context, sourcePath string) ([]models.RawRecord, error) {
	start := time.Now()
	e.reg.SetStage(status.StageExtracting, "Extracting")

	records, err := e.extract(sourcePath)
	if err != nil {
		e.notifier.Notify(ctx, "Extraction", time.Now())
		e.reg.Fail("Extraction", err.Error())
		return nil, err
	}

	e.reg.SetExtractProgress(100)
	e.reg.SetStage(status.StageExtracting, "Extracted")
	log.Printf("Extracted %d records in %s", len(records), time.Since(start).Round(time.Millisecond))

	return records, nil
}

func (e *Extractor) extract(sourcePath string) ([]models.RawRecord, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
		}
		return nil, fmt.Errorf("read source: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(decodeToUTF8(data)))
	// Variable field counts are padded with the sentinel below. Quoting
	// stays strict so malformed rows abort the run instead of loading
	// mangled data.
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty source: no header row")
		}
		return nil, fmt.Errorf("read header row: %w", err)
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	var records []models.RawRecord
	row := 1
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return nil, fmt.Errorf("stream fault at row %d: %w", row, err)
		}

		rec := make(models.RawRecord, len(headers))
		for i, h := range headers {
			v := ""
			if i < len(fields) {
				v = strings.TrimSpace(fields[i])
			}
			if v == "" {
				v = models.Sentinel
			}
			rec[h] = v
		}
		// The downstream contract expects every known column present even
		// when the header omits it.
		for _, col := range models.Columns {
			if _, ok := rec[col]; !ok {
				rec[col] = models.Sentinel
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeToUTF8 strips a UTF-8 BOM and falls back to Latin-1 decoding when
// the payload is not valid UTF-8.
func decodeToUTF8(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	decoded, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), data)
	if err != nil {
		return data
	}
	return decoded
}
