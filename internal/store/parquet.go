package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// ParquetArchive exports the executed-fill history to Parquet files for
// offline analysis. One file per calendar day; re-archiving a day merges
// with what is already on disk, deduplicated by (order id, timestamp), so
// the export is idempotent.
type ParquetArchive struct {
	DataDir string
}

// NewParquetArchive creates an archive rooted at the given data directory.
func NewParquetArchive(dataDir string) *ParquetArchive {
	return &ParquetArchive{DataDir: dataDir}
}

// FillRecord is the Parquet schema for one executed fill.
type FillRecord struct {
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Side       string  `parquet:"side"`
	Symbol     string  `parquet:"symbol"`
	Name       string  `parquet:"name"`
	Qty        int64   `parquet:"qty"`
	Price      float64 `parquet:"price"`
	Amount     float64 `parquet:"amount"`
	Reason     string  `parquet:"reason"`
	OrderID    string  `parquet:"order_id"`
	RealizedPL float64 `parquet:"realized_pl"`
}

// ArchiveFills writes trade records to per-day Parquet files, merging with
// existing files.
func (a *ParquetArchive) ArchiveFills(records []domain.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}

	groups := make(map[string][]FillRecord)
	for _, r := range records {
		date := r.Timestamp.Format("2006-01-02")
		groups[date] = append(groups[date], FillRecord{
			Timestamp:  r.Timestamp.UnixMilli(),
			Side:       string(r.Side),
			Symbol:     r.Symbol,
			Name:       r.Name,
			Qty:        r.Qty,
			Price:      r.Price,
			Amount:     r.Amount,
			Reason:     r.Reason,
			OrderID:    r.OrderID,
			RealizedPL: r.RealizedPL,
		})
	}

	for date, recs := range groups {
		path := a.fillPath(date)

		existing, _ := readParquetFile[FillRecord](path)
		merged := mergeFillRecords(existing, recs)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("archiving fills for %s: %w", date, err)
		}
	}
	return nil
}

// ReadFills reads archived fills for a single day.
func (a *ParquetArchive) ReadFills(date string) ([]domain.TradeRecord, error) {
	recs, err := readParquetFile[FillRecord](a.fillPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	records := make([]domain.TradeRecord, 0, len(recs))
	for _, r := range recs {
		records = append(records, domain.TradeRecord{
			Timestamp:  time.UnixMilli(r.Timestamp),
			Side:       domain.Side(r.Side),
			Symbol:     r.Symbol,
			Name:       r.Name,
			Qty:        r.Qty,
			Price:      r.Price,
			Amount:     r.Amount,
			Reason:     r.Reason,
			OrderID:    r.OrderID,
			RealizedPL: r.RealizedPL,
		})
	}
	return records, nil
}

// fillPath returns the filesystem path for a day's fill archive.
// Layout: <dataDir>/fills/<YYYY-MM-DD>.parquet
func (a *ParquetArchive) fillPath(date string) string {
	return filepath.Join(a.DataDir, "fills", date+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeFillRecords deduplicates by (order id, timestamp), preferring new
// records over existing ones. Results are sorted by timestamp.
func mergeFillRecords(existing, incoming []FillRecord) []FillRecord {
	type key struct {
		orderID string
		ts      int64
	}
	seen := make(map[key]FillRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.OrderID, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.OrderID, r.Timestamp}] = r
	}

	merged := make([]FillRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
