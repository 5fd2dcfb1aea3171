package runtime

// BlockStatus is one block's entry in a Status snapshot.
type BlockStatus struct {
	Name  string     `json:"name"`
	State BlockState `json:"state"`
	Error string     `json:"error,omitempty"`
}

// EdgeStatus is one edge's entry in a Status snapshot. Committed counts
// producer-side samples (or objects); Advanced counts what this edge's
// consumer has taken. Committed >= Advanced always holds.
type EdgeStatus struct {
	Name      string  `json:"name"`
	Type      string  `json:"type"`
	Rate      float64 `json:"rate"`
	Committed int64   `json:"committed"`
	Advanced  int64   `json:"advanced"`
}

// Status is a point-in-time snapshot of the running graph, derived from the
// control channel and the per-edge transport counters.
type Status struct {
	Running bool          `json:"running"`
	Blocks  []BlockStatus `json:"blocks"`
	Edges   []EdgeStatus  `json:"edges"`
}

// Status reports the supervisor's current view of the graph.
func (rt *Runtime) Status() Status {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	st := Status{}
	running := false
	for _, u := range rt.units {
		name := u.block.Name()
		bs := BlockStatus{Name: name, State: rt.states[name]}
		if err := rt.firstFatal[name]; err != nil {
			bs.Error = err.Error()
		}
		if bs.State == StateRunning {
			running = true
		}
		st.Blocks = append(st.Blocks, bs)
	}
	st.Running = running
	for _, tap := range rt.edgeTaps {
		// Read the consumer cursor first: the committed count can only grow
		// afterwards, so the snapshot never shows Advanced above Committed.
		advanced := tap.advanced()
		st.Edges = append(st.Edges, EdgeStatus{
			Name:      tap.edge.Name(),
			Type:      tap.edge.Type.Name,
			Rate:      tap.edge.Rate,
			Committed: tap.committed(),
			Advanced:  advanced,
		})
	}
	return st
}
