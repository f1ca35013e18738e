// Package console is the controller behind the admin console: one generic
// editing surface over every catalog kind.
//
// # State
//
// The Controller owns the active kind, the collection shown for it (in server
// order), a loading flag and the edit modal. Views read it through State and
// re-read on every console event.
//
// # Fetching
//
// Selecting a kind clears the collection and fetches it. A newer selection
// cancels the older fetch, and results from a superseded fetch are dropped.
// Mutations never patch the collection: a successful save or delete is
// followed by exactly one refetch of the active kind, and a failed one by
// none.
//
// # Saving
//
// Save dispatches on identifier presence. A record with an identifier (zero
// included) is an update of that id; a record without one is a create.
//
// # Lifetime
//
// Close cancels every in-flight call. Responses that arrive afterwards are
// ignored.
package console
