package metrics

// Policy selects the collector a metric is backed by.
type Policy int

const (
	PolicyNone      Policy = iota
	PolicySet              // gauge, last value wins
	PolicySum              // counter
	PolicyHistogram        // histogram of observed values
	PolicyStopwatch        // histogram of durations in seconds
)

func (p Policy) String() string {
	switch p {
	case PolicySet:
		return "set"
	case PolicySum:
		return "sum"
	case PolicyHistogram:
		return "histogram"
	case PolicyStopwatch:
		return "stopwatch"
	default:
		return "none"
	}
}

// Value represents a metric value as a float64.
type Value float64

// Dimension is the label set attached to one observation, e.g. {"kind": "ACK"}.
type Dimension map[string]string
