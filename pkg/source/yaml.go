package source

import (
	"fmt"

	"github.com/macropower/dtrl/api/v1beta1/tables"
	"github.com/macropower/dtrl/pkg/config"
	"github.com/macropower/dtrl/pkg/table"
)

// LoadYAML reads a DecisionTable document. Rows referenced via rowsFrom are
// appended to the document's own rows.
func LoadYAML(path string, o *Options) (*table.Table, error) {
	l, err := config.NewLoaderFromFile(path, tables.New, tables.DefaultValidator,
		config.WithColor(o.Color),
	)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	dt, err := l.ValidateAndLoad()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	t, err := dt.ToTable()
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	if dt.RowsFrom != "" {
		rows, err := ReadCSVFile(rowsPath(path, dt.RowsFrom))
		if err != nil {
			return nil, fmt.Errorf("load %s: rowsFrom: %w", path, err)
		}

		t.Rows = append(t.Rows, rows...)
	}

	return t, nil
}
