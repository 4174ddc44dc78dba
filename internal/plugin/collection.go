package plugin

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

// Collection owns the plugins loaded for a single host.
//
// Plugins are added only through Load and stay registered until the
// collection is discarded. Collection is safe for concurrent use; concurrent
// Load calls that reach the same plugin share a single construction.
type Collection[H any] struct {
	mu sync.RWMutex

	host   H
	logger hclog.Logger

	// Loaded plugins by ID
	plugins map[ID]Plugin

	// Registration order (for deterministic iteration)
	order []ID

	// Tasks currently being constructed by some Load call
	pending map[ID]*task[H]

	// Event handlers (protected by mu)
	handlers []EventHandler
}

// Option configures a Collection.
type Option func(*options)

type options struct {
	logger hclog.Logger
}

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewCollection creates an empty collection for host.
func NewCollection[H any](host H, opts ...Option) *Collection[H] {
	o := options{logger: hclog.NewNullLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Collection[H]{
		host:    host,
		logger:  o.logger,
		plugins: make(map[ID]Plugin),
		order:   make([]ID, 0),
		pending: make(map[ID]*task[H]),
	}
}

// Host returns the host passed to every plugin constructor.
func (c *Collection[H]) Host() H {
	return c.host
}

// loadCall carries the per-call state of Load.
type loadCall struct {
	id     string
	logger hclog.Logger

	// created is appended under the collection mutex.
	created []Plugin
}

// Load loads the given plugins together with everything they require.
//
// It returns the plugins constructed by this call in registration order;
// plugins that were already loaded are skipped. Dependencies are always
// registered before the plugins that require them, and independent plugins
// are constructed concurrently.
//
// Load fails with a *ContractViolationError or *CyclicDependencyError before
// anything is constructed, or with an *InstantiationError for the first
// constructor that fails. Load returns as soon as the first failure is
// known: no new construction starts, and constructors that are already
// running finish on their own. Plugins registered before or after the
// failure stay registered.
func (c *Collection[H]) Load(ctx context.Context, descs ...Descriptor[H]) ([]Plugin, error) {
	lc := &loadCall{id: uuid.NewString()}
	lc.logger = c.logger.With("load", lc.id)

	c.mu.Lock()
	p, err := c.newPlanner().build(descs)
	if err != nil {
		c.mu.Unlock()
		lc.logger.Error("plugin load rejected", "error", err)
		return nil, err
	}
	for _, t := range p.owned {
		t.owner = lc.id
		c.pending[t.id] = t
	}
	c.mu.Unlock()

	lc.logger.Debug("loading plugins", "requested", len(descs), "constructing", len(p.owned), "shared", len(p.external))
	c.emit(Event{Type: EventLoadStarted, Load: lc.id})

	// failed receives the first error before the group cancels gctx, so it
	// is never a cancellation caused by that error.
	failed := make(chan error, 1)
	report := func(err error) error {
		if err != nil {
			select {
			case failed <- err:
			default:
			}
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range p.owned {
		g.Go(func() error {
			return report(c.run(gctx, t, lc))
		})
	}
	for _, t := range p.external {
		g.Go(func() error {
			return report(wait(gctx, t, lc.id))
		})
	}

	finished := make(chan error, 1)
	go func() {
		finished <- g.Wait()
	}()

	select {
	case err = <-failed:
		c.sweep(p.owned, err)
	case err = <-finished:
	}

	c.emit(Event{Type: EventLoadFinished, Load: lc.id, Error: err})
	if err != nil {
		return nil, err
	}

	lc.logger.Debug("plugins loaded", "count", len(lc.created))
	return lc.created, nil
}

// Plan returns the IDs Load would construct for descs, dependencies first,
// without constructing anything. It reports the same contract and cycle
// errors Load would.
func (c *Collection[H]) Plan(descs ...Descriptor[H]) ([]ID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, err := c.newPlanner().build(descs)
	if err != nil {
		return nil, err
	}
	ids := make([]ID, len(p.owned))
	for i, t := range p.owned {
		ids[i] = t.id
	}
	return ids, nil
}

// run waits for t's dependencies, constructs it and registers the instance.
func (c *Collection[H]) run(ctx context.Context, t *task[H], lc *loadCall) error {
	for _, dep := range t.deps {
		if err := wait(ctx, dep, lc.id); err != nil {
			c.abort(t, err, lc)
			return err
		}
	}

	// A sibling may have failed while we were not waiting on anything.
	if err := ctx.Err(); err != nil {
		c.abort(t, err, lc)
		return err
	}

	c.mu.Lock()
	if t.state != StatePending {
		// Swept by a failed Load.
		c.mu.Unlock()
		return t.err
	}
	t.state = StateConstructing
	c.mu.Unlock()

	inst, err := construct(ctx, t.desc, c.host)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// Cancelled by a failure elsewhere or by the caller.
		c.abort(t, err, lc)
		return err
	}
	if err != nil {
		ierr := &InstantiationError{ID: t.id, Err: err}
		c.fail(t, ierr, lc)
		return ierr
	}

	c.register(t, inst, lc)
	return nil
}

// wait blocks until t completes and returns its error. The error of a task
// constructed by another Load call names the shared plugin, so that call's
// cancellation is not mistaken for the caller's own.
func wait[H any](ctx context.Context, t *task[H], load string) error {
	select {
	case <-t.done:
		if t.err != nil && t.owner != load {
			return fmt.Errorf("plugin %q: loaded by another call: %w", t.id, t.err)
		}
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// construct invokes the descriptor's constructor, turning panics and nil
// instances into errors.
func construct[H any](ctx context.Context, d Descriptor[H], host H) (p Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	p, err = d.New(ctx, host)
	if err == nil && isNil(p) {
		err = ErrNilInstance
	}
	return p, err
}

func (c *Collection[H]) register(t *task[H], inst Plugin, lc *loadCall) {
	c.mu.Lock()
	c.plugins[t.id] = inst
	c.order = append(c.order, t.id)
	delete(c.pending, t.id)
	t.inst = inst
	t.state = StateLoaded
	lc.created = append(lc.created, inst)
	c.mu.Unlock()

	// Dependents are released only after the event, so handlers observe
	// plugins in registration order.
	lc.logger.Debug("plugin loaded", "plugin", t.id, "name", inst.Name())
	c.emit(Event{Type: EventPluginLoaded, Load: lc.id, Plugin: t.id})
	close(t.done)
}

func (c *Collection[H]) fail(t *task[H], err error, lc *loadCall) {
	lc.logger.Error("plugin could not be loaded", "plugin", t.id, "error", err)
	c.emit(Event{Type: EventPluginFailed, Load: lc.id, Plugin: t.id, Error: err})

	c.finish(t, StateFailed, err)
}

func (c *Collection[H]) abort(t *task[H], cause error, lc *loadCall) {
	c.finish(t, StateAborted, cause)
	lc.logger.Debug("plugin load aborted", "plugin", t.id, "cause", cause)
}

func (c *Collection[H]) finish(t *task[H], state State, err error) {
	c.mu.Lock()
	if t.state.IsTerminal() {
		c.mu.Unlock()
		return
	}
	delete(c.pending, t.id)
	t.state = state
	t.err = err
	c.mu.Unlock()
	close(t.done)
}

// sweep aborts the tasks of a failed Load that have not started
// constructing. Running constructors are left to finish.
func (c *Collection[H]) sweep(owned []*task[H], cause error) {
	var swept []*task[H]

	c.mu.Lock()
	for _, t := range owned {
		if t.state != StatePending {
			continue
		}
		delete(c.pending, t.id)
		t.state = StateAborted
		t.err = cause
		swept = append(swept, t)
	}
	c.mu.Unlock()

	for _, t := range swept {
		close(t.done)
	}
}

// Get returns a loaded plugin by ID.
func (c *Collection[H]) Get(id ID) (Plugin, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.plugins[id]
	return p, ok
}

// Lookup returns the plugin registered under id if it has type P.
func Lookup[P Plugin, H any](c *Collection[H], id ID) (P, bool) {
	var zero P
	p, ok := c.Get(id)
	if !ok {
		return zero, false
	}
	typed, ok := p.(P)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Has returns true if a plugin is registered under id.
func (c *Collection[H]) Has(id ID) bool {
	_, ok := c.Get(id)
	return ok
}

// State returns the loading state of id.
func (c *Collection[H]) State(id ID) State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.plugins[id]; ok {
		return StateLoaded
	}
	if t, ok := c.pending[id]; ok {
		return t.state
	}
	return StateUnloaded
}

// All returns the loaded plugins in registration order.
// Each iteration observes the plugins registered when it starts.
func (c *Collection[H]) All() iter.Seq2[ID, Plugin] {
	return func(yield func(ID, Plugin) bool) {
		c.mu.RLock()
		ids := slices.Clone(c.order)
		plugins := make([]Plugin, len(ids))
		for i, id := range ids {
			plugins[i] = c.plugins[id]
		}
		c.mu.RUnlock()

		for i, id := range ids {
			if !yield(id, plugins[i]) {
				return
			}
		}
	}
}

// IDs returns the loaded plugin IDs in registration order.
func (c *Collection[H]) IDs() []ID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}

// Len returns the number of loaded plugins.
func (c *Collection[H]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.plugins)
}
