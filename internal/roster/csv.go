package roster

import (
	"encoding/csv"
	"io"

	"github.com/aea-online/shopmap/internal/model"
)

// ReadCSV parses a CSV roster with a header row.
func ReadCSV(r io.Reader) ([]model.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // rows are fitted to the header width
	reader.LazyQuotes = true
	return decode(reader)
}
