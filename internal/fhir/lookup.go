package fhir

// LookupState is the outcome of searching for a resource expected to be unique
type LookupState int

const (
	NotFound LookupState = iota
	Found
	Ambiguous
)

func (s LookupState) String() string {
	switch s {
	case Found:
		return "found"
	case Ambiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Lookup carries the match when State is Found and the match count otherwise
type Lookup[T any] struct {
	State    LookupState
	Resource *T
	Matches  int
}

// Single interprets a search bundle with exactly-one-or-none semantics
func Single[T any](b *Bundle) (Lookup[T], error) {
	items, err := DecodeEntries[T](b)
	if err != nil {
		return Lookup[T]{}, err
	}

	switch len(items) {
	case 0:
		return Lookup[T]{State: NotFound}, nil
	case 1:
		return Lookup[T]{State: Found, Resource: &items[0], Matches: 1}, nil
	default:
		return Lookup[T]{State: Ambiguous, Matches: len(items)}, nil
	}
}
