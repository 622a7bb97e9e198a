package graph

// schedule returns passes in execution order. Recorded order wins unless a pass reads a
// texture that only a later pass produces.
func (g *Graph) schedule(passes []RenderPass) []RenderPass {
	producers := make(map[string][]int)
	for i, p := range passes {
		for _, t := range p.Produces() {
			producers[t.ID()] = append(producers[t.ID()], i)
		}
	}

	edges := make([][]int, len(passes))
	indegree := make([]int, len(passes))
	forward := false
	for i, p := range passes {
		for _, t := range p.Uses {
			j, later := producerFor(producers[t.ID()], i)
			if j < 0 {
				continue
			}
			if later {
				forward = true
				g.log.Warnf("graph: pass %q uses %q produced by later pass %q", p.Name, t.Label(), passes[j].Name)
			}
			edges[j] = append(edges[j], i)
			indegree[i]++
		}
	}
	if !forward || !g.reorder {
		return passes
	}

	out := make([]RenderPass, 0, len(passes))
	done := make([]bool, len(passes))
	for len(out) < len(passes) {
		next := -1
		for i := range passes {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			g.log.Warnf("graph: pass dependencies form a cycle, keeping recorded order")
			return passes
		}
		done[next] = true
		out = append(out, passes[next])
		for _, k := range edges[next] {
			indegree[k]--
		}
	}
	return out
}

// producerFor picks the closest earlier producer of a texture, or the first later one
// when no earlier pass produces it. A pass never depends on itself.
func producerFor(indices []int, consumer int) (int, bool) {
	earlier := -1
	for _, j := range indices {
		if j < consumer {
			earlier = j
		}
	}
	if earlier >= 0 {
		return earlier, false
	}
	for _, j := range indices {
		if j > consumer {
			return j, true
		}
	}
	return -1, false
}
