package constants

// Output format identifiers accepted in the "format" parameter
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatSDF  = "sdf"
)

// Content types for the supported output formats
const (
	JSONMimeType = "application/json"
	CSVMimeType  = "text/csv"
	XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	SDFMimeType  = "chemical/x-mdl-sdfile"
	ZipMimeType  = "application/zip"
)

// ContentTypeForFormat maps a format identifier to its content type.
// Returns "" for unknown formats.
func ContentTypeForFormat(format string) string {
	switch format {
	case FormatJSON:
		return JSONMimeType
	case FormatCSV:
		return CSVMimeType
	case FormatXLSX:
		return XLSXMimeType
	case FormatSDF:
		return SDFMimeType
	}
	return ""
}

// FormatForContentType maps an Accept header media type to a format
// identifier. Returns "" for unknown media types.
func FormatForContentType(contentType string) string {
	switch contentType {
	case JSONMimeType:
		return FormatJSON
	case CSVMimeType:
		return FormatCSV
	case XLSXMimeType:
		return FormatXLSX
	case SDFMimeType:
		return FormatSDF
	}
	return ""
}
