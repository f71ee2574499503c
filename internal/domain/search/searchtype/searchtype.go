package searchtype

// Type is the document type a search or alert runs against.
type Type string

// Search type constants. The short codes are the wire values carried in
// the "type" parameter of a serialized query string.
const (
	Opinion      Type = "o"
	OralArgument Type = "oa"
	Recap        Type = "r"
	// Dockets is a case-only view over the Recap corpus.
	Dockets Type = "d"
	People  Type = "p"
)

// IsValid checks if the type is one of the supported values.
func (t Type) IsValid() bool {
	switch t {
	case Opinion, OralArgument, Recap, Dockets, People:
		return true
	}
	return false
}

// HasChildDocs reports whether results of this type group child documents
// under a parent document.
func (t Type) HasChildDocs() bool {
	return t == Opinion || t == Recap || t == Dockets
}

// ParentIDField returns the result field holding the parent document id
// used to group hits of this type.
func (t Type) ParentIDField() string {
	switch t {
	case Recap, Dockets:
		return "docket_id"
	case Opinion:
		return "cluster_id"
	default:
		return "id"
	}
}
