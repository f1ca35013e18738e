// ABOUTME: Field schemas for every resource kind: input kinds, required flags, coercions
// ABOUTME: One canonical schema per kind; the registry is static and read-only

package catalog

import "fmt"

// InputKind is the form control used to edit a field.
type InputKind string

// InputKind constants
const (
	InputText   InputKind = "text"
	InputURL    InputKind = "url"
	InputNumber InputKind = "number"
	InputSelect InputKind = "select"
)

// Coercion converts the raw form string into the field's stored value.
type Coercion int

// Coercion constants
const (
	CoerceNone        Coercion = iota // keep the string
	CoerceInt                         // base-10 integer, required to parse
	CoerceFloatOrNull                 // empty means null, otherwise a float
)

// Field describes one editable field of a resource kind.
type Field struct {
	Name     string
	Label    string
	Input    InputKind
	Required bool
	Coercion Coercion
	Options  []string // allowed values for InputSelect
}

// Schema is the ordered field list of a resource kind.
type Schema struct {
	Kind   Kind
	Fields []Field
}

// Field looks up a field by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// OutletCategories are the regions an outlet can be filed under.
var OutletCategories = []string{"Kuala Lumpur", "Selangor"}

var schemas = map[Kind]Schema{
	KindOutlet: {
		Kind: KindOutlet,
		Fields: []Field{
			{Name: "name", Label: "Name", Input: InputText, Required: true},
			{Name: "category", Label: "Category", Input: InputSelect, Required: true, Options: OutletCategories},
			{Name: "address", Label: "Address", Input: InputText},
			{Name: "maps_url", Label: "Maps URL", Input: InputURL},
		},
	},
	KindProduct: {
		Kind: KindProduct,
		Fields: []Field{
			{Name: "name", Label: "Name", Input: InputText, Required: true},
			{Name: "link", Label: "Product Link", Input: InputURL},
			{Name: "category", Label: "Category", Input: InputText, Required: true},
			{Name: "price", Label: "Price", Input: InputNumber, Coercion: CoerceFloatOrNull},
			{Name: "image_url", Label: "Image URL", Input: InputURL},
			{Name: "stock", Label: "Stock", Input: InputNumber, Coercion: CoerceInt},
		},
	},
	KindFood:  menuSchema(KindFood),
	KindDrink: menuSchema(KindDrink),
}

// menuSchema is shared by food and drink, which carry the same fields.
func menuSchema(k Kind) Schema {
	return Schema{
		Kind: k,
		Fields: []Field{
			{Name: "name", Label: "Name", Input: InputText, Required: true},
			{Name: "category", Label: "Category", Input: InputText, Required: true},
			{Name: "price", Label: "Price", Input: InputNumber, Coercion: CoerceFloatOrNull},
			{Name: "image_url", Label: "Image URL", Input: InputURL},
		},
	}
}

// SchemaFor returns the canonical schema for k.
func SchemaFor(k Kind) (Schema, error) {
	s, ok := schemas[k]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
	return s, nil
}

// MustSchema is SchemaFor for kinds known to be valid. It panics otherwise.
func MustSchema(k Kind) Schema {
	s, err := SchemaFor(k)
	if err != nil {
		panic(err)
	}
	return s
}

// Default returns the blank record used when creating a new item of kind k.
// Strings are empty, nullable prices are nil and stock counts are zero.
func Default(k Kind) Record {
	switch k {
	case KindOutlet:
		return &Outlet{}
	case KindProduct:
		return &Product{}
	case KindFood:
		return &Food{}
	case KindDrink:
		return &Drink{}
	}
	return nil
}
