package task

// Set is the validated, immutable collection of tasks a Scheduler
// consumes. Construction performs every check the protocol calls for
// up front: name uniqueness, dependency referential integrity, and
// acyclicity. Forward and reverse adjacency are built once here, not
// recomputed per scheduling decision.
type Set struct {
	order []string         // caller's original task order, the FIFO tiebreak
	tasks map[string]*Task // by name

	dependents   map[string][]string // name -> tasks that depend on it
	dependencies map[string][]string // name -> tasks it depends on (== TaskDeps)
}

// color states for the three-color DFS cycle check.
type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS stack
	black              // fully explored
)

// NewSet validates tasks and returns the Set the scheduler will execute.
//
// Construction validates, per spec:
//  1. All names unique.
//  2. All declared dependencies reference known task names.
//  3. The graph is acyclic (three-color DFS; a back edge is a cycle and
//     fails construction with the offending cycle reported).
func NewSet(tasks []*Task) (*Set, error) {
	s := &Set{
		order:        make([]string, 0, len(tasks)),
		tasks:        make(map[string]*Task, len(tasks)),
		dependents:   make(map[string][]string, len(tasks)),
		dependencies: make(map[string][]string, len(tasks)),
	}

	for _, t := range tasks {
		if t.Name == "" {
			return nil, &ConfigError{Reason: "task with empty name"}
		}
		if _, dup := s.tasks[t.Name]; dup {
			return nil, &ConfigError{Reason: "duplicate task name", Tasks: []string{t.Name}}
		}
		s.tasks[t.Name] = t
		s.order = append(s.order, t.Name)
	}

	for _, t := range tasks {
		s.dependencies[t.Name] = t.TaskDeps
		for _, dep := range t.TaskDeps {
			if _, ok := s.tasks[dep]; !ok {
				return nil, &ConfigError{
					Reason: "task depends on unknown task",
					Tasks:  []string{t.Name, dep},
				}
			}
			s.dependents[dep] = append(s.dependents[dep], t.Name)
		}
	}

	if cycle := s.findCycle(); len(cycle) > 0 {
		return nil, &ConfigError{Reason: "dependency cycle detected", Tasks: cycle}
	}

	return s, nil
}

// findCycle runs a three-color DFS over the dependency graph (edges
// point from a task to its TaskDeps) and returns the nodes on the first
// cycle found, in traversal order, or nil if the graph is acyclic.
// Nodes are visited in the caller's original order for determinism.
func (s *Set) findCycle() []string {
	colors := make(map[string]color, len(s.order))
	var stack []string
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		colors[name] = gray
		stack = append(stack, name)

		for _, dep := range s.dependencies[name] {
			switch colors[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				// Back edge found: report the cycle from its start to here.
				start := 0
				for i, n := range stack {
					if n == dep {
						start = i
						break
					}
				}
				cycle = append([]string{}, stack[start:]...)
				return true
			case black:
				// already fully explored, no cycle through it
			}
		}

		colors[name] = black
		stack = stack[:len(stack)-1]
		return false
	}

	for _, name := range s.order {
		if colors[name] == white {
			if visit(name) {
				return cycle
			}
		}
	}
	return nil
}

// Names returns task names in the caller's original order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of tasks in the set.
func (s *Set) Len() int { return len(s.order) }

// Get returns the task with the given name, or nil if absent.
func (s *Set) Get(name string) *Task { return s.tasks[name] }

// Each calls fn for every task in the set, in caller order.
func (s *Set) Each(fn func(*Task)) {
	for _, name := range s.order {
		fn(s.tasks[name])
	}
}

// Dependents returns the names of tasks that directly depend on name.
func (s *Set) Dependents(name string) []string { return s.dependents[name] }

// Dependencies returns the direct dependency names of name (== that
// task's TaskDeps).
func (s *Set) Dependencies(name string) []string { return s.dependencies[name] }
