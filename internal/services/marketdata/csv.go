package marketdata

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/trailgrid/internal/domain"
	"go.uber.org/zap"
)

// CSVSource reads <dir>/<SYMBOL>.csv files with a header row naming
// date (or time/timestamp), open, high, low, close and optionally volume.
type CSVSource struct {
	dir string
	l   *zap.Logger
}

// NewCSVSource creates a source reading from dir.
func NewCSVSource(dir string, l *zap.Logger) *CSVSource {
	if l == nil {
		l = zap.NewNop()
	}
	return &CSVSource{dir: dir, l: l}
}

// Bars implements Source.
func (s *CSVSource) Bars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	path := filepath.Join(s.dir, strings.ToUpper(symbol)+".csv")

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open bars for %s", symbol)
	}
	defer f.Close()

	bars, err := ReadCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	out := bars[:0]
	for _, b := range bars {
		if inRange(b.Day(), from, to) {
			out = append(out, b)
		}
	}

	s.l.Debug("csv bars loaded", zap.String("symbol", symbol), zap.String("path", path), zap.Int("bars", len(out)))

	return out, ctx.Err()
}

// ReadCSV parses a bar file and returns its rows sorted by date.
func ReadCSV(r io.Reader) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	dateCol := -1
	for _, name := range []string{"date", "time", "timestamp"} {
		if i, ok := cols[name]; ok {
			dateCol = i
			break
		}
	}
	if dateCol < 0 {
		return nil, errors.New("header has no date, time or timestamp column")
	}
	for _, name := range []string{"open", "high", "low", "close"} {
		if _, ok := cols[name]; !ok {
			return nil, errors.Errorf("header has no %s column", name)
		}
	}

	var bars []domain.Bar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		bar, err := parseRow(rec, dateCol, cols)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	return bars, nil
}

func parseRow(rec []string, dateCol int, cols map[string]int) (domain.Bar, error) {
	date, err := parseDate(rec[dateCol])
	if err != nil {
		return domain.Bar{}, err
	}

	// only volume may be absent from the header; a present column must be filled
	field := func(name string) (decimal.Decimal, error) {
		i, ok := cols[name]
		if !ok {
			return decimal.Zero, nil
		}
		if i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
			return decimal.Zero, errors.Errorf("missing %s", name)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(rec[i]))
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "parse %s", name)
		}
		return v, nil
	}

	bar := domain.Bar{Date: date}
	for _, f := range []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"open", &bar.Open},
		{"high", &bar.High},
		{"low", &bar.Low},
		{"close", &bar.Close},
		{"volume", &bar.Volume},
	} {
		if *f.dst, err = field(f.name); err != nil {
			return domain.Bar{}, err
		}
	}

	return bar, nil
}

var dateLayouts = []string{time.DateOnly, time.RFC3339, "2006-01-02 15:04:05"}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}

	if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// millisecond timestamps are 13 digits
		if sec > 1e12 {
			return time.UnixMilli(sec).UTC(), nil
		}
		return time.Unix(sec, 0).UTC(), nil
	}

	return time.Time{}, errors.Errorf("unrecognised date %q", raw)
}
