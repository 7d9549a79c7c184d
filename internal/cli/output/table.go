package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by command results that render as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// Fields is a two column FIELD/VALUE table for single-resource views.
type Fields [][2]string

// Add appends a row and returns the table for chaining.
func (f Fields) Add(field, value string) Fields {
	return append(f, [2]string{field, value})
}

// Headers implements TableRenderer.
func (f Fields) Headers() []string {
	return []string{"FIELD", "VALUE"}
}

// Rows implements TableRenderer.
func (f Fields) Rows() [][]string {
	rows := make([][]string, len(f))
	for i, kv := range f {
		rows[i] = []string{kv[0], kv[1]}
	}
	return rows
}

// PrintTable writes a borderless, left aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.Headers())
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}
