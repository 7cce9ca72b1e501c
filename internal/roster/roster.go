// Package roster reads the member roster (CSV or XLSX with a header row) into
// raw records.
package roster

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/aea-online/shopmap/internal/model"
)

// ErrNotFound is returned (wrapped) when the roster file does not exist.
var ErrNotFound = eris.New("roster: input file not found")

const utf8BOM = "\uFEFF"

// Load reads every record from the roster at path. Files ending in .xlsx are
// read from their first sheet; everything else is parsed as CSV.
func Load(path string) ([]model.RawRecord, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, eris.Wrapf(ErrNotFound, "roster: %s", path)
		}
		return nil, eris.Wrapf(err, "roster: stat %s", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roster: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return ReadCSV(f)
}

// decode binds rows from src to RawRecords by header name. Unknown columns
// are ignored and missing columns stay empty.
func decode(src csvutil.Reader) ([]model.RawRecord, error) {
	dec, err := csvutil.NewDecoder(&fittedReader{src: src})
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []model.RawRecord{}, nil
		}
		return nil, eris.Wrap(err, "roster: read header")
	}

	records := []model.RawRecord{}
	for {
		var rec model.RawRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "roster: decode record %d", len(records)+1)
		}
		records = append(records, rec)
	}
	return records, nil
}

// fittedReader trims every cell, strips a BOM from the header, skips blank
// rows and pads or truncates data rows to the header width.
type fittedReader struct {
	src   csvutil.Reader
	width int
	seen  bool
}

func (r *fittedReader) Read() ([]string, error) {
	for {
		row, err := r.src.Read()
		if err != nil {
			return nil, err
		}

		blank := true
		for i, cell := range row {
			row[i] = strings.TrimSpace(cell)
			if row[i] != "" {
				blank = false
			}
		}

		if !r.seen {
			if len(row) > 0 {
				row[0] = strings.TrimSpace(strings.TrimPrefix(row[0], utf8BOM))
			}
			r.seen = true
			r.width = len(row)
			return row, nil
		}

		if blank {
			continue
		}
		switch {
		case len(row) < r.width:
			row = append(row, make([]string, r.width-len(row))...)
		case len(row) > r.width:
			row = row[:r.width]
		}
		return row, nil
	}
}
