// Package grammar holds the per-thread structural objects the pattern
// detector builds and the thread reader walks: Event, EventSummary,
// Sequence, and Loop, stored in dense append-only tables indexed by
// token id.
package grammar

// RecordType classifies what kind of action an Event describes.
type RecordType uint8

const (
	RecordEnter RecordType = iota
	RecordLeave
	RecordSingleton
	RecordMpiSend
	RecordMpiRecv
	RecordMetricSample
)

// String renders the record type for pallas_info output.
func (r RecordType) String() string {
	switch r {
	case RecordEnter:
		return "Enter"
	case RecordLeave:
		return "Leave"
	case RecordSingleton:
		return "Singleton"
	case RecordMpiSend:
		return "MpiSend"
	case RecordMpiRecv:
		return "MpiRecv"
	case RecordMetricSample:
		return "MetricSample"
	default:
		return "Unknown"
	}
}

// Event is an opaque, immutable record of one instrumented action: what
// kind of action it was, which definition-table entry it refers to (a
// region for Enter/Leave, a communicator for MPI records), and an
// encoded parameter payload whose shape depends on RecordType.
type Event struct {
	Type      RecordType
	RegionRef uint32
	RefParam  uint64
	Params    []byte
}

// Equal reports whether two Events describe the same action, used when
// deciding whether a new occurrence matches an existing EventSummary.
func (e Event) Equal(other Event) bool {
	if e.Type != other.Type || e.RegionRef != other.RegionRef || e.RefParam != other.RefParam {
		return false
	}
	if len(e.Params) != len(other.Params) {
		return false
	}
	for i := range e.Params {
		if e.Params[i] != other.Params[i] {
			return false
		}
	}
	return true
}
