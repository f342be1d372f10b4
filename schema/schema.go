package schema

// ============================================================================
// SCHEMA — Describes the shape of a dataset
// ============================================================================
// Discovered from any engine.RecordView (CSV, JSON, search hits, typed
// structs). Used by the CLI's --discover output and by CheckWidget to flag
// widget configs that do not fit the data.
// ============================================================================

// FieldType is the inferred value type of a field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeDate    FieldType = "date"
	TypeBoolean FieldType = "boolean"
)

// Role is how a field is best used in a widget.
type Role string

const (
	RoleDimension Role = "dimension" // group/filter by it
	RoleMeasure   Role = "measure"   // aggregate it
	RoleSkipped   Role = "skipped"
)

// Schema describes the fields of a dataset.
type Schema struct {
	Name    string  `json:"name" yaml:"name"`
	Records int     `json:"records" yaml:"records"`
	Fields  []Field `json:"fields" yaml:"fields"`

	// Fields left out of Fields, with the reason.
	Skipped []SkippedField `json:"skipped,omitempty" yaml:"skipped,omitempty"`

	DiscoveredFrom string `json:"discoveredFrom,omitempty" yaml:"discoveredFrom,omitempty"`
	DiscoveredAt   string `json:"discoveredAt,omitempty" yaml:"discoveredAt,omitempty"`
}

// Field describes one field of the dataset.
type Field struct {
	Key            string    `json:"key" yaml:"key"`
	DisplayName    string    `json:"displayName" yaml:"displayName"`
	Type           FieldType `json:"type" yaml:"type"`
	Role           Role      `json:"role" yaml:"role"`
	SampleValues   []string  `json:"sampleValues" yaml:"sampleValues"`
	Unique         int       `json:"unique" yaml:"unique"`
	Nulls          int       `json:"nulls" yaml:"nulls"`
	Cardinality    string    `json:"cardinality" yaml:"cardinality"` // "low", "medium", "high"
	IsTemporal     bool      `json:"isTemporal,omitempty" yaml:"isTemporal,omitempty"`
	TemporalFormat string    `json:"temporalFormat,omitempty" yaml:"temporalFormat,omitempty"`
	Parent         string    `json:"parent,omitempty" yaml:"parent,omitempty"` // parent dimension key for hierarchies
}

// SkippedField records why a field was excluded during discovery.
type SkippedField struct {
	Key         string `json:"key" yaml:"key"`
	Reason      string `json:"reason" yaml:"reason"`
	Recoverable bool   `json:"recoverable" yaml:"recoverable"` // can be restored with WithRecover
}

// Field returns the field with the given key.
func (s *Schema) Field(key string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// Dimensions returns the fields with the dimension role.
func (s *Schema) Dimensions() []Field { return s.byRole(RoleDimension) }

// Measures returns the fields with the measure role.
func (s *Schema) Measures() []Field { return s.byRole(RoleMeasure) }

func (s *Schema) byRole(r Role) []Field {
	var out []Field
	for _, f := range s.Fields {
		if f.Role == r {
			out = append(out, f)
		}
	}
	return out
}

// Keys returns every discovered field key in discovery order.
func (s *Schema) Keys() []string {
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = f.Key
	}
	return keys
}

// DefaultMeasure returns the first measure's key, or "" when there is none.
func (s *Schema) DefaultMeasure() string {
	if m := s.Measures(); len(m) > 0 {
		return m[0].Key
	}
	return ""
}
