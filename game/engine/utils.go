package engine

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	dx := from.X - to.X
	if dx < 0 {
		dx = -dx
	}
	dy := from.Y - to.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// ShortestPath returns the positions leading from start to goal, goal
// included and start excluded. It returns nil when goal is unreachable and
// an empty path when start is the goal.
func ShortestPath(u *Universe, start, goal Position) []Position {
	return PathToNearest(u, start, []Position{goal})
}

// PathToNearest runs a breadth first search from start and returns the path
// to the closest of the targets. Ties are broken by the fixed direction order.
func PathToNearest(u *Universe, start Position, targets []Position) []Position {
	if len(targets) == 0 || !u.IsFree(start) {
		return nil
	}
	want := make(map[Position]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}
	if want[start] {
		return []Position{}
	}

	parent := map[Position]Position{start: start}
	queue := []Position{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range Directions {
			if d == Stop {
				continue
			}
			next := cur.Add(d)
			if _, seen := parent[next]; seen || !u.IsFree(next) {
				continue
			}
			parent[next] = cur
			if want[next] {
				return unwindPath(parent, start, next)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func unwindPath(parent map[Position]Position, start, end Position) []Position {
	var path []Position
	for p := end; p != start; p = parent[p] {
		path = append(path, p)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// CountFood counts the food markers in layout rows
func CountFood(rows []string) int {
	count := 0
	for _, row := range rows {
		for i := 0; i < len(row); i++ {
			if row[i] == FoodChar {
				count++
			}
		}
	}
	return count
}
