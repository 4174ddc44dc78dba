package plugin

// task is one node of the resolution graph built by a Load call.
// A task is completed exactly once; done is closed after inst, err and
// state are final, so readers that waited on done may read them freely.
type task[H any] struct {
	id   ID
	desc Descriptor[H]

	// owner is the ID of the Load call that constructs the task.
	owner string

	// deps are the unfinished tasks this one waits for. Dependencies that
	// were already loaded at planning time are not tracked.
	deps []*task[H]

	// state is guarded by the collection mutex until done is closed.
	state State
	inst  Plugin
	err   error
	done  chan struct{}
}

func newTask[H any](d Descriptor[H]) *task[H] {
	return &task[H]{
		id:    d.ID(),
		desc:  d,
		state: StatePending,
		done:  make(chan struct{}),
	}
}

// plan is the outcome of planning a Load call.
type plan[H any] struct {
	// owned are the tasks this call constructs, dependencies first.
	owned []*task[H]

	// external are tasks owned by a concurrent Load that this call reached
	// and has to wait for.
	external []*task[H]
}

// planner walks the transitive closure of the requested descriptors.
// It must run with the collection mutex held.
type planner[H any] struct {
	c     *Collection[H]
	plan  plan[H]
	nodes map[ID]*task[H]
	// path is the current depth-first path, used to report cycles.
	path   []ID
	onPath map[ID]int
}

func (c *Collection[H]) newPlanner() *planner[H] {
	return &planner[H]{
		c:      c,
		nodes:  make(map[ID]*task[H]),
		onPath: make(map[ID]int),
	}
}

// build plans every requested descriptor. It never constructs anything and
// leaves the collection untouched, so a failed plan has no side effects.
func (p *planner[H]) build(descs []Descriptor[H]) (*plan[H], error) {
	for _, d := range descs {
		if _, err := p.visit(d); err != nil {
			return nil, err
		}
	}
	return &p.plan, nil
}

// visit returns the task d resolves to, or nil when d is already loaded.
func (p *planner[H]) visit(d Descriptor[H]) (*task[H], error) {
	if isNil(d) {
		return nil, &ContractViolationError{Reason: "descriptor is nil"}
	}

	id := d.ID()

	// Already loaded: nothing to do, contributes nothing.
	if _, ok := p.c.plugins[id]; ok {
		return nil, nil
	}

	// Already reached in this call. Revisiting a node that is still on the
	// current path means the requires graph loops back on itself.
	if t, ok := p.nodes[id]; ok {
		if start, onPath := p.onPath[id]; onPath {
			cycle := append([]ID{}, p.path[start:]...)
			cycle = append(cycle, id)
			return nil, &CyclicDependencyError{Cycle: cycle}
		}
		return t, nil
	}

	// Being constructed by another Load call: share its result. Its own
	// plan already proved the part of the graph below it acyclic.
	if t, ok := p.c.pending[id]; ok {
		p.nodes[id] = t
		p.plan.external = append(p.plan.external, t)
		return t, nil
	}

	if err := Validate(d); err != nil {
		return nil, err
	}

	t := newTask(d)
	p.nodes[id] = t
	p.onPath[id] = len(p.path)
	p.path = append(p.path, id)

	for _, req := range d.Requires() {
		dep, err := p.visit(req)
		if err != nil {
			return nil, err
		}
		if dep != nil && !containsTask(t.deps, dep) {
			t.deps = append(t.deps, dep)
		}
	}

	p.path = p.path[:len(p.path)-1]
	delete(p.onPath, id)
	p.plan.owned = append(p.plan.owned, t)
	return t, nil
}

func containsTask[H any](tasks []*task[H], t *task[H]) bool {
	for _, x := range tasks {
		if x == t {
			return true
		}
	}
	return false
}
