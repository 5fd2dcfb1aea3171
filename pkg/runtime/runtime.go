// Package runtime schedules a resolved flow graph: it carves the graph into
// execution units, allocates a buffer per edge, drives the units with
// parallel workers, and supervises startup, shutdown and failure through a
// control channel.
//
// One execution unit per block is the partitioning policy. Units run
// independently and coordinate only through back-pressured buffers, so the
// only global synchronization is the shutdown flag and the control channel.
package runtime

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sigflow/sigflow/pkg/common/config"
	"github.com/sigflow/sigflow/pkg/common/logging"
	"github.com/sigflow/sigflow/pkg/core/flow"
)

// BlockState is the supervisor's view of one block, derived solely from
// control-channel events.
type BlockState string

const (
	StateCreated BlockState = "created"
	StateRunning BlockState = "running"
	StateStopped BlockState = "stopped"
	StateFailed  BlockState = "failed"
)

// Runtime owns a running graph. Build a graph, hand it to New, then
// Start / Stop / Wait / Status.
type Runtime struct {
	graph *flow.Graph
	cfg   *config.Config
	log   *logging.Logger

	units      []*unit
	transports []*transport
	edgeTaps   []edgeTap

	events    chan Event
	stopping  atomic.Bool
	workers   sync.WaitGroup
	superDone chan struct{}

	mu         sync.Mutex
	started    bool
	states     map[string]BlockState
	rates      map[string]float64
	firstFatal map[string]error
	fatalOrder []string
	subs       []chan Event

	startOnce sync.Once
	stopOnce  sync.Once
	waitOnce  sync.Once
	waitErr   error
}

// edgeTap pairs an edge with its transport counters for Status.
type edgeTap struct {
	edge      *flow.Edge
	committed func() int64
	advanced  func() int64
}

// New wraps a built graph. cfg nil means defaults; the logger comes from the
// global logging setup.
func New(g *flow.Graph, cfg *config.Config) *Runtime {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Runtime{
		graph:      g,
		cfg:        cfg,
		log:        logging.GetGlobalLogger().WithComponent("runtime"),
		states:     make(map[string]BlockState),
		rates:      make(map[string]float64),
		firstFatal: make(map[string]error),
	}
}

// Start freezes the graph and brings it live: resolve signatures, propagate
// rates (initializing every block), allocate a buffer per edge, then spawn
// one worker per execution unit. Construction errors return synchronously;
// after Start succeeds, failures surface from Wait.
func (rt *Runtime) Start() error {
	var err error
	rt.startOnce.Do(func() { err = rt.start() })
	return err
}

func (rt *Runtime) start() error {
	if err := rt.graph.Validate(); err != nil {
		return err
	}
	assign, err := rt.graph.Resolve()
	if err != nil {
		return err
	}
	if err := rt.graph.PropagateRates(assign); err != nil {
		return err
	}
	rt.graph.Freeze()

	blocks := rt.graph.Blocks()
	rt.events = make(chan Event, 4*len(blocks)+8)
	rt.superDone = make(chan struct{})

	bufferSamples := rt.cfg.Runtime.BufferSamples
	if min := 2 * rt.cfg.Runtime.ChunkSamples; bufferSamples < min {
		bufferSamples = min
	}

	// One transport per producer output port; fan-out consumers share it
	// through per-reader cursors.
	type portKey struct {
		block flow.Block
		port  int
	}
	transports := make(map[portKey]*transport)
	inlets := make(map[*flow.Edge]*inlet)
	for _, e := range rt.graph.Edges() {
		key := portKey{e.From, e.FromPort}
		t, ok := transports[key]
		if !ok {
			t = newTransport(e.Type, bufferSamples, rt.cfg.Runtime.QueueObjects)
			transports[key] = t
			rt.transports = append(rt.transports, t)
		}
		in := t.addReader()
		inlets[e] = in
		rt.edgeTaps = append(rt.edgeTaps, edgeTap{edge: e, committed: t.committed, advanced: in.advanced})
	}

	schedLog := logging.GetGlobalLogger().WithComponent("scheduler")
	for _, b := range blocks {
		u := &unit{
			block:        b,
			sig:          assign[b],
			chunkSamples: rt.cfg.Runtime.ChunkSamples,
			minRead:      rt.cfg.Runtime.MinReadSamples,
			capSamples:   bufferSamples,
			log:          schedLog.WithField("block", b.Name()),
		}
		for _, e := range rt.graph.InEdges(b) {
			u.ins = append(u.ins, inlets[e])
		}
		for port := 0; port < len(b.Outputs()); port++ {
			t, ok := transports[portKey{b, port}]
			if !ok {
				// Unconnected output: samples written here go nowhere, but
				// the block still needs a place to put them.
				var typ = assign[b].Outputs[port]
				t = newTransport(typ, bufferSamples, rt.cfg.Runtime.QueueObjects)
				t.addReader().detach()
				rt.transports = append(rt.transports, t)
			}
			u.outs = append(u.outs, t)
		}
		rt.units = append(rt.units, u)
		rt.states[b.Name()] = StateCreated
	}
	for _, e := range rt.graph.Edges() {
		rt.rates[e.Name()] = e.Rate
	}

	rt.mu.Lock()
	rt.started = true
	rt.mu.Unlock()

	go rt.supervise()
	for _, u := range rt.units {
		rt.workers.Add(1)
		go func(u *unit) {
			defer rt.workers.Done()
			u.run(rt)
		}(u)
	}
	go func() {
		rt.workers.Wait()
		close(rt.events)
	}()

	rt.log.Info("graph started", map[string]interface{}{
		"blocks": len(blocks),
		"edges":  len(rt.graph.Edges()),
	})
	return nil
}

// supervise consumes the control channel until every worker has exited. A
// failed worker triggers shutdown of the rest.
func (rt *Runtime) supervise() {
	defer close(rt.superDone)
	for ev := range rt.events {
		rt.mu.Lock()
		switch ev.Kind {
		case EventStarted:
			rt.states[ev.Block] = StateRunning
		case EventStopped:
			if rt.states[ev.Block] != StateFailed {
				rt.states[ev.Block] = StateStopped
			}
		case EventFailed:
			rt.states[ev.Block] = StateFailed
			if _, seen := rt.firstFatal[ev.Block]; !seen {
				rt.firstFatal[ev.Block] = ev.Err
				rt.fatalOrder = append(rt.fatalOrder, ev.Block)
			}
		}
		subs := make([]chan Event, len(rt.subs))
		copy(subs, rt.subs)
		rt.mu.Unlock()

		for _, ch := range subs {
			select {
			case ch <- ev:
			default: // slow observers drop events rather than stall workers
			}
		}
		if ev.Kind == EventFailed {
			rt.log.Error("block failed, stopping graph", map[string]interface{}{
				"block": ev.Block, "error": ev.Error,
			})
			rt.shutdown()
		}
	}
}

// Stop requests shutdown: the flag flips and every buffer closes, so each
// worker finishes its current Process call, flushes, and exits. Idempotent.
func (rt *Runtime) Stop() {
	rt.mu.Lock()
	started := rt.started
	rt.mu.Unlock()
	if !started {
		return
	}
	rt.stopOnce.Do(func() {
		rt.log.Info("stop requested")
		rt.shutdown()
	})
}

func (rt *Runtime) shutdown() {
	rt.stopping.Store(true)
	for _, t := range rt.transports {
		t.close()
	}
}

// Wait blocks until every worker has terminated and returns the aggregate of
// the first fatal error per worker (nil for a clean run). Idempotent after
// termination.
func (rt *Runtime) Wait() error {
	rt.mu.Lock()
	started := rt.started
	rt.mu.Unlock()
	if !started {
		return nil
	}
	rt.waitOnce.Do(func() {
		rt.workers.Wait()
		<-rt.superDone
		rt.mu.Lock()
		defer rt.mu.Unlock()
		errs := make([]error, 0, len(rt.fatalOrder))
		for _, name := range rt.fatalOrder {
			errs = append(errs, rt.firstFatal[name])
		}
		rt.waitErr = errors.Join(errs...)
		rt.log.Info("graph terminated", map[string]interface{}{
			"failures": len(errs),
		})
	})
	return rt.waitErr
}

// Subscribe attaches an observer to the control-event stream. Slow observers
// lose events; they never block the graph.
func (rt *Runtime) Subscribe() <-chan Event {
	ch := make(chan Event, 64)
	rt.mu.Lock()
	rt.subs = append(rt.subs, ch)
	rt.mu.Unlock()
	return ch
}

// Unsubscribe detaches an observer channel.
func (rt *Runtime) Unsubscribe(ch <-chan Event) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	for i, have := range rt.subs {
		if have == ch {
			rt.subs = append(rt.subs[:i], rt.subs[i+1:]...)
			return
		}
	}
}
