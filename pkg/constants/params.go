package constants

// Reserved request parameter names. Every other parameter is interpreted as
// a filter expression of the form "field__operator".
const (
	ParamLimit        = "limit"
	ParamOffset       = "offset"
	ParamOrderBy      = "order_by"
	ParamIncludes     = "includes"
	ParamExcludes     = "excludes"
	ParamExactFields  = "exact_fields"
	ParamVisibilities = "visibilities"
	ParamNestedSearch = "nested_search_data"
	ParamFormat       = "format"
	ParamUseTitles    = "use_titles"
	ParamRawLists     = "raw_lists"
	ParamDownloadID   = "downloadID"
)

// Filter expression syntax markers
const (
	// LookupSep separates the field name from the operator suffix
	LookupSep = "__"
	// InvertedPrefix negates a filter or reverses an ordering when it
	// prefixes a field key
	InvertedPrefix = "-"
)

// List value delimiters
const (
	// ListDelimiterSQLArray joins list values inside a single SQL column
	ListDelimiterSQLArray = ";"
	// ListDelimiterURLParam splits multi-valued URL parameters (in, range)
	ListDelimiterURLParam = ","
	// ListDelimiterExport joins list values in CSV and XLSX cells
	ListDelimiterExport = ";"
	// ListBrackets wraps exported list values as "[a;b]"; disabled by the
	// raw_lists request option
	ListBrackets = "[]"
)

// DefaultLimit is applied when the request does not specify a page size
const DefaultLimit = 25

// HeaderAuthorization is the bearer token header
const HeaderAuthorization = "Authorization"

// ContextKeyUser is the gin context key holding the authenticated session
const ContextKeyUser = "user"
