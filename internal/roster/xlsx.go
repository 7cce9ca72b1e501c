package roster

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/aea-online/shopmap/internal/model"
)

// ReadXLSX parses the first sheet of an XLSX roster. The first row is the
// header.
func ReadXLSX(path string) ([]model.RawRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roster: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("roster: %s has no sheets", path)
	}
	return decode(&sheetReader{rows: f.Sheets[0].Rows})
}

// sheetReader adapts sheet rows to the csvutil.Reader interface.
type sheetReader struct {
	rows []*xlsx.Row
	next int
}

func (s *sheetReader) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return rowToStrings(row), nil
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
