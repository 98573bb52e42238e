// Package importfeeds loads feed subscriptions from a CSV file.
package importfeeds

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"mpsync/syncer/internal/models"
)

// FeedStore receives the imported feeds.
type FeedStore interface {
	UpsertFeed(ctx context.Context, f *models.Feed) error
}

// Report summarizes an import.
type Report struct {
	Total    int
	Imported int
	Errors   []string
}

// Importer handles the feed import process
type Importer struct {
	store      FeedStore
	httpClient *http.Client
}

// NewImporter creates a new feed importer
func NewImporter(store FeedStore) *Importer {
	return &Importer{store: store, httpClient: http.DefaultClient}
}

// ImportFeeds imports feeds from a CSV file path or an http(s) URL. Rows
// that fail are reported and skipped.
func (i *Importer) ImportFeeds(ctx context.Context, source string) (*Report, error) {
	log.Info().Str("csv", source).Msg("Starting feed import")

	csvData, err := i.getCSVData(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to get CSV data: %w", err)
	}
	defer csvData.Close()

	report, err := i.parseAndImportFeeds(ctx, csvData)
	if err != nil {
		return nil, fmt.Errorf("failed to import feeds: %w", err)
	}

	log.Info().
		Int("total", report.Total).
		Int("success", report.Imported).
		Int("errors", len(report.Errors)).
		Msg("Import summary")
	return report, nil
}

func (i *Importer) getCSVData(ctx context.Context, source string) (io.ReadCloser, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		log.Info().Str("path", source).Msg("Using local CSV file")
		return os.Open(source)
	}

	log.Info().Str("url", source).Msg("Downloading CSV file")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file: HTTP status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (i *Importer) parseAndImportFeeds(ctx context.Context, csvData io.Reader) (*Report, error) {
	reader := csv.NewReader(csvData)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, err
	}
	log.Debug().Strs("header", header).Msg("CSV header read")

	for _, column := range []string{"id", "name"} {
		if findColumnIndex(header, column) < 0 {
			return nil, fmt.Errorf("required column '%s' not found in CSV header", column)
		}
	}

	idIdx := findColumnIndex(header, "id")
	nameIdx := findColumnIndex(header, "name")
	coverIdx := findColumnIndex(header, "cover")
	introIdx := findColumnIndex(header, "intro")
	statusIdx := findColumnIndex(header, "status")
	updateTimeIdx := findColumnIndex(header, "update_time")

	report := &Report{}
	lineCount := 1 // Header was already read

	for {
		lineCount++
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn().Err(err).Int("line", lineCount).Msg("Error reading CSV line")
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", lineCount, err))
			continue
		}

		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			log.Debug().Int("line", lineCount).Msg("Skipping empty row")
			continue
		}
		report.Total++

		feed := models.NewFeed(safeGetValue(record, idIdx))
		feed.Name = safeGetValue(record, nameIdx)
		feed.Cover = safeGetValue(record, coverIdx)
		feed.Intro = safeGetValue(record, introIdx)

		if feed.ID == "" || feed.Name == "" {
			log.Warn().Int("line", lineCount).Msg("Skipping row without id or name")
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: empty id or name", lineCount))
			continue
		}
		if s := safeGetValue(record, statusIdx); s != "" {
			status, err := parseStatus(s)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", lineCount, err))
				continue
			}
			feed.Status = status
		}
		if s := safeGetValue(record, updateTimeIdx); s != "" {
			ts, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("line %d: invalid update_time %q", lineCount, s))
				continue
			}
			feed.UpdateTime = ts
		}

		logger := log.With().Int("line", lineCount).Str("feed_id", feed.ID).Logger()
		if err := i.store.UpsertFeed(ctx, feed); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			logger.Error().Err(err).Msg("Failed to store feed")
			report.Errors = append(report.Errors, fmt.Sprintf("line %d: %v", lineCount, err))
			continue
		}

		report.Imported++
		logger.Debug().Msg("Feed imported")
	}

	return report, nil
}

// parseStatus accepts the numeric or named form of a status.
func parseStatus(s string) (models.Status, error) {
	switch strings.ToLower(s) {
	case "1", "enabled", "enable":
		return models.StatusEnabled, nil
	case "0", "invalid", "disabled", "disable":
		return models.StatusInvalid, nil
	default:
		return 0, fmt.Errorf("invalid status %q", s)
	}
}

func findColumnIndex(header []string, columnName string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), columnName) {
			return i
		}
	}
	return -1
}

// safeGetValue returns the trimmed value at index, or "" when the index is out of range.
func safeGetValue(record []string, index int) string {
	if index >= 0 && index < len(record) {
		return strings.TrimSpace(record[index])
	}
	return ""
}
