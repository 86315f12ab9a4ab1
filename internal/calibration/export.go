package calibration

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
)

// WriteCSV writes calibrated trials as one table: trial, row, then one
// column per key present in any trial, in slot order. Missing values and
// columns a trial lacks are written as empty cells.
func WriteCSV(w io.Writer, trials []*CalibratedTrial) error {
	var present [NumKeys]bool
	for _, t := range trials {
		for _, col := range t.Columns {
			present[col.Key] = true
		}
	}
	header := []string{"trial", "row"}
	var keys []Key
	for _, k := range AllKeys {
		if present[k] {
			keys = append(keys, k)
			header = append(header, k.Column())
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(header))
	for _, t := range trials {
		for row := 0; row < t.Len(); row++ {
			record[0] = strconv.Itoa(t.TrialNumber)
			record[1] = strconv.Itoa(row)
			for j, k := range keys {
				record[2+j] = ""
				if vals, ok := t.Column(k.Column()); ok && row < len(vals) && !math.IsNaN(vals[row]) {
					record[2+j] = strconv.FormatFloat(vals[row], 'f', -1, 64)
				}
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
