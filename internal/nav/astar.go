package nav

import "container/heap"

type pathNode struct {
	id     NodeID
	g      float64
	f      float64
	index  int
	parent *pathNode
}

type pathQueue []*pathNode

func (pq pathQueue) Len() int { return len(pq) }

func (pq pathQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }

func (pq pathQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *pathQueue) Push(x any) {
	item := x.(*pathNode)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *pathQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

func (g *Graph) heuristic(a, b NodeID) float64 {
	la, lb := g.nodes[a], g.nodes[b]
	if !la.HasWaypoint() || !lb.HasWaypoint() {
		return 0
	}
	return la.Waypoint.Dist(*lb.Waypoint)
}

// FindPathIDs runs A* from start to goal. The result includes both endpoints
// and is empty when goal is unreachable or either node is unknown.
func FindPathIDs(g *Graph, start, goal NodeID) []NodeID {
	if g == nil {
		return nil
	}
	if _, ok := g.nodes[start]; !ok {
		return nil
	}
	if _, ok := g.nodes[goal]; !ok {
		return nil
	}
	open := &pathQueue{}
	heap.Init(open)
	heap.Push(open, &pathNode{id: start, f: g.heuristic(start, goal)})
	gScore := map[NodeID]float64{start: 0}
	closed := make(map[NodeID]struct{})

	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		if _, seen := closed[current.id]; seen {
			continue
		}
		closed[current.id] = struct{}{}
		if current.id == goal {
			return reconstructPath(current)
		}
		for _, edge := range g.adj[current.id] {
			if _, seen := closed[edge.To]; seen {
				continue
			}
			tentativeG := current.g + edge.Weight
			if prev, ok := gScore[edge.To]; ok && tentativeG >= prev {
				continue
			}
			gScore[edge.To] = tentativeG
			heap.Push(open, &pathNode{
				id:     edge.To,
				g:      tentativeG,
				f:      tentativeG + g.heuristic(edge.To, goal),
				parent: current,
			})
		}
	}
	return nil
}

func reconstructPath(end *pathNode) []NodeID {
	path := make([]NodeID, 0)
	for node := end; node != nil; node = node.parent {
		path = append(path, node.id)
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// FindPath resolves names and runs A*. It returns the node names along the
// path, or nil when no path exists.
func FindPath(g *Graph, startName, goalName string) []string {
	if g == nil {
		return nil
	}
	start, ok := g.byName[startName]
	if !ok {
		return nil
	}
	goal, ok := g.byName[goalName]
	if !ok {
		return nil
	}
	ids := FindPathIDs(g, start, goal)
	if len(ids) == 0 {
		return nil
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = g.nodes[id].Name
	}
	return names
}
