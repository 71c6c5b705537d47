package dto

// ExportFormat enumerates user export encodings.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
	ExportFormatPDF  ExportFormat = "pdf"
)

// UserExportRequest selects users to export.
type UserExportRequest struct {
	BulkRequest
	Format ExportFormat `json:"format" validate:"omitempty,oneof=csv xlsx pdf"`
	Role   string       `json:"role"`
	Status string       `json:"status"`
	Area   string       `json:"area"`
	House  string       `json:"house"`
	Search string       `json:"search"`
}

// ExportFile is a rendered export payload.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
