// Package storage is the SQLite-backed quote store.
//
// Every category holds at most Capacity quotes; inserting into a full
// category first evicts its oldest quote. Quote text is unique across the
// whole store. Exported operations never return storage errors: faults are
// logged and reported as false, an empty slice, or a zero Quote.
package storage
