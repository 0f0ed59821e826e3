package tool

// Parameter kinds understood by the validation gate.
const (
	KindString     = "string"
	KindNumber     = "number"
	KindSeries     = "series"
	KindStringList = "string_list"
)

// Param declares one tool parameter: its kind, whether it is required, an
// optional default applied when absent, and an optional closed value set.
type Param struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Required    bool     `json:"required,omitempty"`
	Description string   `json:"description,omitempty"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	MaxItems    int      `json:"max_items,omitempty"`
}

// Rule is a cross-parameter domain check run after per-parameter validation,
// over the normalized argument map. A nil return means the rule holds.
type Rule func(args map[string]any) *InvokeError

// Schema declares the parameters and domain rules of one tool.
type Schema struct {
	Params []Param `json:"params"`
	Rules  []Rule  `json:"-"`
}

// SeriesArg extracts a normalized series argument. Validation guarantees the
// dynamic type for declared parameters; the boolean guards misuse.
func SeriesArg(args map[string]any, name string) ([]float64, bool) {
	s, ok := args[name].([]float64)
	return s, ok
}

// StringArg extracts a normalized string argument.
func StringArg(args map[string]any, name string) (string, bool) {
	s, ok := args[name].(string)
	return s, ok
}

// StringListArg extracts a normalized string-list argument.
func StringListArg(args map[string]any, name string) ([]string, bool) {
	s, ok := args[name].([]string)
	return s, ok
}

// NumberArg extracts a normalized numeric argument.
func NumberArg(args map[string]any, name string) (float64, bool) {
	f, ok := args[name].(float64)
	return f, ok
}
