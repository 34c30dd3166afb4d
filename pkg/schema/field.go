package schema

// DataType classifies the decoded value of a field
type DataType string

const (
	DataTypeString   DataType = "string"
	DataTypeInteger  DataType = "integer"
	DataTypeDecimal  DataType = "decimal"
	DataTypeBoolean  DataType = "boolean"
	DataTypeDate     DataType = "date"
	DataTypeDatetime DataType = "datetime"
	DataTypeList     DataType = "list"
)

// IsNumeric reports whether values of this type compare numerically
func (dt DataType) IsNumeric() bool {
	return dt == DataTypeInteger || dt == DataTypeDecimal
}

// Visibility tags controlling which request scopes include a field
const (
	VisibilityList    = "list"
	VisibilityDetail  = "detail"
	VisibilitySummary = "summary"
	// VisibilityNone hides the field from every scope unless it is
	// manually included or required as a dependency
	VisibilityNone = "none"
)

// DisplayTypeImage marks a field whose value is a stored image reference
const DisplayTypeImage = "image"

// FieldDescriptor describes one exposable column or virtual column of a
// resource schema.
type FieldDescriptor struct {
	// Key is the field identifier, unique within a schema
	Key string `json:"key"`

	// Title is an optional display name used when use_titles is requested
	Title string `json:"title,omitempty"`

	DataType   DataType `json:"data_type"`
	Visibility []string `json:"visibility,omitempty"`

	// Ordinal determines output column order; ties are broken by schema
	// insertion order
	Ordinal int `json:"ordinal"`

	// Table and SourceField bind the field to a physical column. A field
	// with no table binding is virtual and must be resolved through a
	// custom column expression or a computed Expression.
	Table       string `json:"table,omitempty"`
	SourceField string `json:"field,omitempty"`

	// Linked-field binding: the value lives in a joined table and is
	// selected through a correlated subquery against ParentKey.
	LinkedTable  string `json:"linked_table,omitempty"`
	ParentKey    string `json:"parent_key,omitempty"`
	OrdinalField string `json:"ordinal_field,omitempty"`

	// Dependencies lists field keys required to compute this field's value
	Dependencies []string `json:"dependencies,omitempty"`

	// ValueTemplate interpolates "{field}" placeholders against the row
	ValueTemplate  string `json:"value_template,omitempty"`
	DisplayOptions string `json:"display_options,omitempty"`

	// Expression is an optional computed-field expression evaluated
	// against the row after the query returns
	Expression string `json:"expression,omitempty"`

	DisplayType string `json:"display_type,omitempty"`

	// IsAlphanumeric enables natural ordering for mixed identifiers such
	// as "plate 9" < "plate 10"
	IsAlphanumeric bool `json:"is_alphanumeric,omitempty"`
}

// IsList reports whether the field holds a delimiter-joined list value
func (f *FieldDescriptor) IsList() bool {
	return f.DataType == DataTypeList
}

// IsImage reports whether the field holds an image reference
func (f *FieldDescriptor) IsImage() bool {
	return f.DisplayType == DisplayTypeImage
}

// IsLinked reports whether the field value is selected from a joined table
func (f *FieldDescriptor) IsLinked() bool {
	return f.LinkedTable != ""
}

// ColumnName returns the physical column name backing the field
func (f *FieldDescriptor) ColumnName() string {
	if f.SourceField != "" {
		return f.SourceField
	}
	return f.Key
}

// HasVisibility reports whether the field carries the given visibility tag
func (f *FieldDescriptor) HasVisibility(tag string) bool {
	for _, v := range f.Visibility {
		if v == tag {
			return true
		}
	}
	return false
}
