package source

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// ReadCSV reads table rows from r. Lines starting with '#' are comments.
// A leading UTF-8 BOM is stripped, and every cell is normalized to Unicode
// NFC. Records may have differing widths; widths are checked
// against the table columns at compile time.
func ReadCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)

	bom, err := br.Peek(len(utf8BOM))
	if err == nil && string(bom) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1

	var rows [][]string

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		for i, cell := range record {
			record[i] = norm.NFC.String(cell)
		}

		rows = append(rows, record)
	}

	return rows, nil
}

// ReadCSVFile reads table rows from the CSV file at path.
func ReadCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // Read-only.

	rows, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return rows, nil
}
