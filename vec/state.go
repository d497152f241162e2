package vec

// State is the lifecycle state of an Index.
type State int

const (
	Unbuilt State = iota
	Building
	Ready
	Stale
	Rebuilding
)

func (s State) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case Building:
		return "building"
	case Ready:
		return "ready"
	case Stale:
		return "stale"
	case Rebuilding:
		return "rebuilding"
	}
	return "unknown"
}

// Readable reports whether searches are served without stale reads.
func (s State) Readable() bool {
	return s == Ready || s == Stale
}
