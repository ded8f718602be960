package model

// Identity is the (store, document, id) triple that defines element
// equality. It is comparable and may be used as a map key.
type Identity struct {
	Store       Store
	DocumentURI string
	ID          string
}

// Equal reports whether both identities name the same stored element.
func (i Identity) Equal(other Identity) bool {
	return i.Store == other.Store && i.DocumentURI == other.DocumentURI && i.ID == other.ID
}

// SameDocument reports whether other lives in the same store and document.
func (i Identity) SameDocument(other Identity) bool {
	return i.Store == other.Store && i.DocumentURI == other.DocumentURI
}

func (i Identity) String() string { return i.DocumentURI + "#" + i.ID }
