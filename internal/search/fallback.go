package search

// DegradeFunc observes one transparent fallback from indexed to substring
// mode. It is a side channel, not an error path: the caller of a degraded
// search never learns the indexed path failed. The engine wires this to a
// warning log and a Prometheus counter; tests can substitute their own sink.
type DegradeFunc func(label string, err error)

// withFallback runs primary and, on any error, notifies onDegrade and runs
// fallback. A fallback error is not guarded again: substring matching against
// raw columns failing too means a real outage, which must surface rather
// than be masked. One layer of resilience, not infinite retry.
func withFallback[T any](label string, onDegrade DegradeFunc, primary, fallback func() (T, error)) (T, error) {
	v, err := primary()
	if err == nil {
		return v, nil
	}
	if onDegrade != nil {
		onDegrade(label, err)
	}
	return fallback()
}
