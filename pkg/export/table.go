package export

import "fmt"

// Format enumerates supported report encodings.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// Column describes one report column; Width is a relative weight for PDF layout.
type Column struct {
	Header string
	Width  float64
}

// Table is an ordered tabular report.
type Table struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     [][]string
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("report requires at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// Render encodes the table in the requested format.
func Render(format Format, table Table) ([]byte, error) {
	switch format {
	case FormatCSV:
		return NewCSVExporter().Render(table)
	case FormatPDF:
		return NewPDFExporter().Render(table)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
