package compile

import (
	"github.com/macropower/dtrl/pkg/brl"
	"github.com/macropower/dtrl/pkg/table"
)

// ExtractMetadata returns one [brl.RuleMetadata] per metadata column with a
// valid cell, in column order. Blank cells are skipped; metadata columns have
// no defaults. It returns nil when no metadata is produced.
func ExtractMetadata(cols []*table.MetadataColumn, cells []string) []brl.RuleMetadata {
	var md []brl.RuleMetadata

	for i, c := range cols {
		if !IsValidCell(cells[i]) {
			continue
		}

		md = append(md, brl.RuleMetadata{Name: c.Attribute, Value: cells[i]})
	}

	return md
}

// ExtractAttributes returns one [brl.RuleAttribute] per attribute column with
// a valid cell or, failing that, a non-blank default. It returns nil when no
// attributes are produced.
func ExtractAttributes(cols []*table.AttributeColumn, cells []string) []brl.RuleAttribute {
	var attrs []brl.RuleAttribute

	for i, c := range cols {
		value, ok := cellOrDefault(cells[i], c.Default)
		if !ok {
			continue
		}

		attrs = append(attrs, brl.RuleAttribute{Name: c.Attribute, Value: value})
	}

	return attrs
}
