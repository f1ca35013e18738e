// Package catalog describes the resource kinds managed through the admin console.
//
// # Overview
//
// Each kind (outlet, product, food, drink) has one canonical field schema: an
// ordered list of fields with an input kind, a required flag and a coercion
// rule. The schema drives three things:
//
//   - the default record used when creating a new item,
//   - the generic Form used by the console modal,
//   - decoding of server payloads into typed records.
//
// # Records
//
// Records are a tagged variant: one struct per kind, all implementing Record.
// The identifier is a *int64. A nil identifier means the record has not been
// persisted yet; any non-nil identifier (zero included) means it has:
//
//	if id, ok := rec.Identifier(); ok {
//	    // update id
//	} else {
//	    // create
//	}
//
// # Legacy payloads
//
// Older backends sent an outlet stock flag and string prices such as "RM 55.00".
// Decoding drops unknown keys and Price accepts numeric strings, so every
// decoded record carries exactly its kind's schema fields.
//
// # Forms
//
// Form holds string values keyed by field name. Record() validates and coerces
// them back into a typed record:
//
//	form := catalog.NewForm(catalog.Default(catalog.KindProduct))
//	_ = form.Set("name", "Tumbler")
//	_ = form.Set("stock", "12")
//	rec, err := form.Record()
package catalog
