package export

import (
	"errors"
	"fmt"
)

// ErrNoColumns is returned when a dataset has no header row.
var ErrNoColumns = errors.New("dataset has no columns")

// Dataset is an ordered table. Every row should have len(Columns) cells;
// short rows are padded with blanks and extra cells are dropped.
type Dataset struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Renderer encodes a dataset into a downloadable file.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat returns the renderer registered for a format name.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", "csv":
		return NewCSVExporter(), nil
	case "xlsx":
		return NewXLSXExporter(), nil
	case "pdf":
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func (d Dataset) record(i int) []string {
	out := make([]string, len(d.Columns))
	copy(out, d.Rows[i])
	return out
}
