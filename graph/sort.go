package graph

import (
	"log/slog"
	"sort"

	"github.com/c360studio/tagmirror/entity"
)

// TopoSort computes a deterministic topological ordering of the graph using
// Kahn's algorithm. Dependencies sort before dependents. Among nodes that
// become ready together, ties break by (kind creation priority, name), so
// two runs over identical inputs emit byte-identical orders.
//
// Cycles confined to one entity kind are fatal and return a *CycleError.
// Cross-kind cycles are broken by removing a trigger→tag custom-event edge
// inside the cycle: that edge's weight is informational, not
// creation-ordering. The broken edge is logged.
func (g *Graph) TopoSort(logger *slog.Logger) ([]entity.Header, error) {
	if logger == nil {
		logger = slog.Default()
	}

	for {
		order, done := g.kahn()
		if done {
			return order, nil
		}

		cycle := g.findCycle(order)
		if cycle == nil {
			// Unreachable unless the graph was mutated mid-sort.
			return nil, &CycleError{}
		}
		if cycle.SameKind() {
			return nil, cycle
		}
		from, to, ok := g.breakableEdge(cycle)
		if !ok {
			return nil, cycle
		}
		fromH, _ := g.Node(from)
		toH, _ := g.Node(to)
		logger.Warn("breaking cross-kind dependency cycle",
			"edge_kind", string(EdgeTriggerCustomEvent),
			"from", fromH.Name,
			"to", toH.Name)
		g.RemoveEdge(from, to)
	}
}

// kahn runs one pass of Kahn's algorithm. The bool result is false when a
// cycle blocked completion; the partial order is still returned so the
// caller can locate the cycle among the leftover nodes.
func (g *Graph) kahn() ([]entity.Header, bool) {
	// Out-degree counts remaining unsatisfied dependencies: a node is ready
	// once everything it depends on has been emitted.
	degree := make(map[string]int, len(g.nodes))
	for key := range g.nodes {
		degree[key] = len(g.out[key])
	}

	var ready []entity.Header
	for key, d := range degree {
		if d == 0 {
			ready = append(ready, g.nodes[key])
		}
	}
	sortReady(ready)

	order := make([]entity.Header, 0, len(g.nodes))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		var released []entity.Header
		for _, from := range g.Dependents(next.Key()) {
			degree[from]--
			if degree[from] == 0 {
				released = append(released, g.nodes[from])
			}
		}
		if len(released) > 0 {
			ready = append(ready, released...)
			sortReady(ready)
		}
	}

	return order, len(order) == len(g.nodes)
}

func sortReady(headers []entity.Header) {
	sort.SliceStable(headers, func(i, j int) bool {
		if headers[i].Kind != headers[j].Kind {
			return headers[i].Kind.CreationPriority() < headers[j].Kind.CreationPriority()
		}
		return headers[i].Name < headers[j].Name
	})
}

// findCycle locates one cycle among nodes left out of a partial order.
func (g *Graph) findCycle(partial []entity.Header) *CycleError {
	emitted := make(map[string]bool, len(partial))
	for _, h := range partial {
		emitted[h.Key()] = true
	}

	var remaining []string
	for key := range g.nodes {
		if !emitted[key] {
			remaining = append(remaining, key)
		}
	}
	sort.Strings(remaining)

	const (
		unvisited = 0
		inStack   = 1
		doneState = 2
	)
	state := make(map[string]int, len(remaining))
	var stack []string

	var dfs func(key string) []string
	dfs = func(key string) []string {
		state[key] = inStack
		stack = append(stack, key)
		for _, dep := range g.Dependencies(key) {
			if emitted[dep] {
				continue
			}
			switch state[dep] {
			case unvisited:
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			case inStack:
				// Found the cycle: slice the stack from dep onward and close it.
				for i, k := range stack {
					if k == dep {
						cycle := append([]string{}, stack[i:]...)
						return append(cycle, dep)
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[key] = doneState
		return nil
	}

	for _, key := range remaining {
		if state[key] == unvisited {
			if cycle := dfs(key); cycle != nil {
				headers := make([]entity.Header, 0, len(cycle))
				for _, k := range cycle {
					h, _ := g.Node(k)
					headers = append(headers, h)
				}
				return &CycleError{Nodes: headers}
			}
		}
	}
	return nil
}

// breakableEdge finds a trigger→tag custom-event edge inside the cycle.
func (g *Graph) breakableEdge(cycle *CycleError) (from, to string, ok bool) {
	for i := 0; i+1 < len(cycle.Nodes); i++ {
		f := cycle.Nodes[i].Key()
		t := cycle.Nodes[i+1].Key()
		if g.out[f][t] == EdgeTriggerCustomEvent {
			return f, t, true
		}
	}
	return "", "", false
}
