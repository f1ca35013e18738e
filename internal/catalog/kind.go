// ABOUTME: Resource kinds managed by the admin console and their REST collection paths
// ABOUTME: Closed enumeration with parsing and display helpers

package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKind is returned when a string does not name a resource kind.
var ErrUnknownKind = errors.New("unknown resource kind")

// Kind identifies one of the catalog entity categories.
type Kind string

// Kind constants
const (
	KindOutlet  Kind = "outlet"
	KindProduct Kind = "product"
	KindFood    Kind = "food"
	KindDrink   Kind = "drink"
)

// Kinds lists every resource kind in console tab order.
var Kinds = []Kind{KindOutlet, KindProduct, KindFood, KindDrink}

// ParseKind accepts singular or plural kind names, case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outlet", "outlets":
		return KindOutlet, nil
	case "product", "products":
		return KindProduct, nil
	case "food", "foods":
		return KindFood, nil
	case "drink", "drinks":
		return KindDrink, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindOutlet, KindProduct, KindFood, KindDrink:
		return true
	}
	return false
}

// Label is the singular display name ("Outlet").
func (k Kind) Label() string {
	switch k {
	case KindOutlet:
		return "Outlet"
	case KindProduct:
		return "Product"
	case KindFood:
		return "Food"
	case KindDrink:
		return "Drink"
	}
	return string(k)
}

// Plural is the tab title ("Outlets").
func (k Kind) Plural() string {
	switch k {
	case KindFood:
		return "Food"
	case KindOutlet, KindProduct, KindDrink:
		return k.Label() + "s"
	}
	return string(k)
}

// Path is the default REST collection path for the kind, without trailing slash.
func (k Kind) Path() string {
	switch k {
	case KindOutlet:
		return "/outlets"
	case KindProduct:
		return "/products"
	case KindFood:
		return "/food"
	case KindDrink:
		return "/drinks"
	}
	return "/" + string(k)
}
