// Package store reads the desired membership of each resource.
//
// Two backends are provided. SQLiteStore keeps resources in an "offers"
// table and their desired members in "offer_variants"; it can also mark a
// resource as done and keep audit rows. FileStore reads the same data from a
// YAML document, which is convenient for small runs and tests.
//
// Member values are returned raw. Normalization happens in the member package
// so malformed values can be reported rather than silently dropped.
package store
