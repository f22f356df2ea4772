// Package enrich looks up registration and operator metadata for observed
// aircraft and merges the results into the store.
package enrich

// Outcome is the result of one lookup. Exactly one of Found, Empty, or
// Failed. The asymmetry matters: Empty writes a tombstone record so the
// aircraft is not re-attempted every cycle, Failed writes nothing so the
// next selection retries it.
type Outcome interface {
	outcome()
}

// Found carries the metadata the lookup service returned.
type Found struct {
	Registration  string
	Type          string
	Manufacturer  string
	Operator      string
	OriginCountry string
}

// Empty means the service responded but has no data for this aircraft.
type Empty struct{}

// Failed means a transient failure; the lookup may be retried later.
type Failed struct {
	Err error
}

func (Found) outcome()  {}
func (Empty) outcome()  {}
func (Failed) outcome() {}

// Lookup pairs an aircraft identifier with its outcome.
type Lookup struct {
	Hex     string
	Outcome Outcome
}
