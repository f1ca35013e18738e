// ABOUTME: Typed record variants (Outlet, Product, Food, Drink) and JSON decoding
// ABOUTME: Identifier presence decides create-vs-update; legacy payloads are normalised

package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrFieldSet is returned when a value map does not match a kind's schema.
var ErrFieldSet = errors.New("field set does not match schema")

// Record is a catalog entry of one kind.
type Record interface {
	// Kind reports which schema the record follows.
	Kind() Kind
	// Identifier returns the server id and whether one is present.
	Identifier() (int64, bool)
	// Values returns the schema fields keyed by name. Prices are nil or float64,
	// stock counts are int, everything else is a string.
	Values() map[string]any
	// WithID returns a copy carrying id. A nil id yields an unpersisted copy.
	WithID(id *int64) Record
}

// Outlet is a physical store location.
type Outlet struct {
	ID       *int64 `json:"id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Address  string `json:"address"`
	MapsURL  string `json:"maps_url"`
}

// Product is a merchandise item (drinkware and similar).
type Product struct {
	ID       *int64   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Link     string   `json:"link"`
	Category string   `json:"category"`
	Price    *float64 `json:"price"`
	ImageURL string   `json:"image_url"`
	Stock    int      `json:"stock"`
}

// Food is a menu food item.
type Food struct {
	ID       *int64   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    *float64 `json:"price"`
	ImageURL string   `json:"image_url"`
}

// Drink is a menu beverage.
type Drink struct {
	ID       *int64   `json:"id,omitempty"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    *float64 `json:"price"`
	ImageURL string   `json:"image_url"`
}

// Kind implements Record.
func (o *Outlet) Kind() Kind { return KindOutlet }

// Kind implements Record.
func (p *Product) Kind() Kind { return KindProduct }

// Kind implements Record.
func (f *Food) Kind() Kind { return KindFood }

// Kind implements Record.
func (d *Drink) Kind() Kind { return KindDrink }

// Identifier implements Record.
func (o *Outlet) Identifier() (int64, bool) { return deref(o.ID) }

// Identifier implements Record.
func (p *Product) Identifier() (int64, bool) { return deref(p.ID) }

// Identifier implements Record.
func (f *Food) Identifier() (int64, bool) { return deref(f.ID) }

// Identifier implements Record.
func (d *Drink) Identifier() (int64, bool) { return deref(d.ID) }

func deref(id *int64) (int64, bool) {
	if id == nil {
		return 0, false
	}
	return *id, true
}

// Values implements Record.
func (o *Outlet) Values() map[string]any {
	return map[string]any{
		"name":     o.Name,
		"category": o.Category,
		"address":  o.Address,
		"maps_url": o.MapsURL,
	}
}

// Values implements Record. Stock is always present.
func (p *Product) Values() map[string]any {
	return map[string]any{
		"name":      p.Name,
		"link":      p.Link,
		"category":  p.Category,
		"price":     priceValue(p.Price),
		"image_url": p.ImageURL,
		"stock":     p.Stock,
	}
}

// Values implements Record.
func (f *Food) Values() map[string]any {
	return map[string]any{
		"name":      f.Name,
		"category":  f.Category,
		"price":     priceValue(f.Price),
		"image_url": f.ImageURL,
	}
}

// Values implements Record.
func (d *Drink) Values() map[string]any {
	return map[string]any{
		"name":      d.Name,
		"category":  d.Category,
		"price":     priceValue(d.Price),
		"image_url": d.ImageURL,
	}
}

func priceValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

// WithID implements Record.
func (o *Outlet) WithID(id *int64) Record {
	c := *o
	c.ID = copyID(id)
	return &c
}

// WithID implements Record. The price pointer is copied too.
func (p *Product) WithID(id *int64) Record {
	c := *p
	c.ID = copyID(id)
	c.Price = copyPrice(p.Price)
	return &c
}

// WithID implements Record. The price pointer is copied too.
func (f *Food) WithID(id *int64) Record {
	c := *f
	c.ID = copyID(id)
	c.Price = copyPrice(f.Price)
	return &c
}

// WithID implements Record. The price pointer is copied too.
func (d *Drink) WithID(id *int64) Record {
	c := *d
	c.ID = copyID(id)
	c.Price = copyPrice(d.Price)
	return &c
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyPrice(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ID returns a pointer to id, for building records in code and tests.
func ID(id int64) *int64 { return &id }

// Price returns a pointer to p.
func Price(p float64) *float64 { return &p }

// UnmarshalJSON accepts numeric or legacy string prices.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	aux := struct {
		*plain
		Price json.RawMessage `json:"price"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	price, err := decodePrice(aux.Price)
	if err != nil {
		return err
	}
	p.Price = price
	return nil
}

// UnmarshalJSON accepts numeric or legacy string prices.
func (f *Food) UnmarshalJSON(data []byte) error {
	type plain Food
	aux := struct {
		*plain
		Price json.RawMessage `json:"price"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	price, err := decodePrice(aux.Price)
	if err != nil {
		return err
	}
	f.Price = price
	return nil
}

// UnmarshalJSON accepts numeric or legacy string prices.
func (d *Drink) UnmarshalJSON(data []byte) error {
	type plain Drink
	aux := struct {
		*plain
		Price json.RawMessage `json:"price"`
	}{plain: (*plain)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	price, err := decodePrice(aux.Price)
	if err != nil {
		return err
	}
	d.Price = price
	return nil
}

// decodePrice handles null, numbers, and strings like "RM 55.00" or "".
func decodePrice(raw json.RawMessage) (*float64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil, fmt.Errorf("decoding price: %w", err)
		}
		return ParsePrice(str)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("decoding price %q: %w", s, err)
	}
	return &v, nil
}

// ParsePrice parses a price string. Empty input is a null price. A leading
// currency marker ("RM") and thousands separators are ignored.
func ParsePrice(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && strings.EqualFold(s[:2], "rm") {
		s = strings.TrimSpace(s[2:])
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(v) {
		return nil, fmt.Errorf("invalid price %q", s)
	}
	return &v, nil
}

// finite rejects the NaN and infinity spellings strconv accepts.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Decode parses a single server payload into the canonical record for k.
// Keys outside the schema are dropped.
func Decode(k Kind, data []byte) (Record, error) {
	rec := Default(k)
	if rec == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", k, err)
	}
	return rec, nil
}

// DecodeList parses a JSON array of records of kind k, preserving order.
func DecodeList(k Kind, data []byte) ([]Record, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decoding %s list: %w", k, err)
	}
	out := make([]Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := Decode(k, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// FromValues builds a record of kind k from a value map that must contain
// exactly the schema's fields.
func FromValues(k Kind, id *int64, values map[string]any) (Record, error) {
	schema, err := SchemaFor(k)
	if err != nil {
		return nil, err
	}
	if err := checkFieldSet(schema, values); err != nil {
		return nil, err
	}

	str := func(name string) (string, error) {
		switch v := values[name].(type) {
		case string:
			return v, nil
		case nil:
			return "", nil
		default:
			return "", fmt.Errorf("field %s: expected string, got %T", name, v)
		}
	}

	var fieldErr error
	s := func(name string) string {
		v, err := str(name)
		if err != nil && fieldErr == nil {
			fieldErr = err
		}
		return v
	}

	switch k {
	case KindOutlet:
		rec := &Outlet{
			ID:       copyID(id),
			Name:     s("name"),
			Category: s("category"),
			Address:  s("address"),
			MapsURL:  s("maps_url"),
		}
		return rec, fieldErr
	case KindProduct:
		price, err := toPrice(values["price"])
		if err != nil {
			return nil, err
		}
		stock, err := toInt(values["stock"])
		if err != nil {
			return nil, err
		}
		rec := &Product{
			ID:       copyID(id),
			Name:     s("name"),
			Link:     s("link"),
			Category: s("category"),
			Price:    price,
			ImageURL: s("image_url"),
			Stock:    stock,
		}
		return rec, fieldErr
	case KindFood, KindDrink:
		price, err := toPrice(values["price"])
		if err != nil {
			return nil, err
		}
		if k == KindFood {
			return &Food{ID: copyID(id), Name: s("name"), Category: s("category"), Price: price, ImageURL: s("image_url")}, fieldErr
		}
		return &Drink{ID: copyID(id), Name: s("name"), Category: s("category"), Price: price, ImageURL: s("image_url")}, fieldErr
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
}

func checkFieldSet(schema Schema, values map[string]any) error {
	var missing, extra []string
	for _, name := range schema.Names() {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	for name := range values {
		if _, ok := schema.Field(name); !ok {
			extra = append(extra, name)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	sort.Strings(extra)
	return fmt.Errorf("%w for %s: missing %v, extra %v", ErrFieldSet, schema.Kind, missing, extra)
}

func toPrice(v any) (*float64, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &p, nil
	case *float64:
		return copyPrice(p), nil
	case int:
		f := float64(p)
		return &f, nil
	case int64:
		f := float64(p)
		return &f, nil
	case string:
		return ParsePrice(p)
	}
	return nil, fmt.Errorf("field price: unsupported type %T", v)
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("field stock: %v is not a whole number", n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("field stock: %q is not a whole number", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("field stock: unsupported type %T", v)
}
