package engine

// PipelineConfig is a validated, decoded pipeline configuration. Stages
// with nil or empty members are skipped by Apply. Instances are built by
// ParseConfig and treated as immutable afterwards.
type PipelineConfig struct {
	ColumnMapping   map[string]string
	ColumnSelection []string
	Filters         []Filter
	ComputedFields  []ComputedField
	DropColumns     []string
}

// Filter is a single row predicate. Filters in a configuration are ANDed.
type Filter struct {
	Column   string
	Operator string
	Value    Value
}

// Supported filter operators.
const (
	OpEq       = "eq"
	OpGt       = "gt"
	OpLt       = "lt"
	OpContains = "contains"
)

// supportedOperators is kept sorted; it renders into validator messages.
var supportedOperators = []string{OpContains, OpEq, OpGt, OpLt}

// ComputedField derives a new column from an expression.
type ComputedField struct {
	Name string
	Expr *Expression
}

// ParseConfig validates raw JSON against the configuration shape and
// decodes it. On any validation failure the config is nil and the field
// errors describe every problem found.
func ParseConfig(raw []byte) (*PipelineConfig, []FieldError) {
	return buildConfig(raw)
}

// ValidateConfig checks raw JSON against the configuration shape without
// keeping the decoded result. An empty slice means the config is valid.
func ValidateConfig(raw []byte) []FieldError {
	_, errs := buildConfig(raw)
	return errs
}
