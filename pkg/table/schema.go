package table

// Schema holds the cell offsets of each column group of a [Table].
type Schema struct {
	Metadata   int
	Attributes int
	Conditions int
	Actions    int
	// Width is the number of cells every row must have.
	Width int
}

// NewSchema computes the [Schema] for t.
func NewSchema(t *Table) Schema {
	s := Schema{Metadata: InternalCells}
	s.Attributes = s.Metadata + len(t.Metadata)
	s.Conditions = s.Attributes + len(t.Attributes)
	s.Actions = s.Conditions + len(t.Conditions)
	s.Width = s.Actions + len(t.Actions)

	return s
}

// Cells is one row split into its column groups.
type Cells struct {
	Metadata   []string
	Attributes []string
	Conditions []string
	Actions    []string
}

// Split slices row into its column groups. The row must be exactly
// [Schema.Width] cells wide.
func (s Schema) Split(row []string) Cells {
	return Cells{
		Metadata:   row[s.Metadata:s.Attributes],
		Attributes: row[s.Attributes:s.Conditions],
		Conditions: row[s.Conditions:s.Actions],
		Actions:    row[s.Actions:s.Width],
	}
}
