package model

// ElementSnapshot captures one element and its properties.
type ElementSnapshot struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Properties PropertyMap `json:"properties,omitempty"`
}

// DocumentSnapshot is the portable form of one document's elements, used by
// durable stores and document archives.
type DocumentSnapshot struct {
	DocumentURI string            `json:"document_uri"`
	Elements    []ElementSnapshot `json:"elements"`
	// Counters records the next allocation counter per id type so anonymous
	// ids are never reissued after a reload.
	Counters map[string]uint64 `json:"counters,omitempty"`
}
