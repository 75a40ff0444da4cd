package match

import (
	"sort"

	"github.com/ironsheep/block-mosaic/internal/imaging"
	"github.com/ironsheep/block-mosaic/internal/palette"
)

// kdNode is one palette entry placed in the tree. left and right index into
// kdTree.nodes, -1 for none.
type kdNode struct {
	point [3]int
	entry int
	axis  int
	left  int
	right int
}

// kdTree is a static 3-d tree over the representative colors of a palette,
// split on the median of the widest axis at each level.
type kdTree struct {
	p     *palette.Palette
	nodes []kdNode
	root  int
}

func newKDTree(p *palette.Palette) *kdTree {
	t := &kdTree{p: p, nodes: make([]kdNode, 0, p.Len())}
	idx := make([]int, p.Len())
	for i := range idx {
		idx[i] = i
	}
	t.root = t.build(idx)
	return t
}

func point(c imaging.RGBColor) [3]int {
	return [3]int{int(c.R), int(c.G), int(c.B)}
}

func (t *kdTree) build(idx []int) int {
	if len(idx) == 0 {
		return -1
	}

	axis := widestAxis(t.p, idx)
	sort.Slice(idx, func(a, b int) bool {
		pa := point(t.p.Entries[idx[a]].Color)[axis]
		pb := point(t.p.Entries[idx[b]].Color)[axis]
		if pa != pb {
			return pa < pb
		}
		return idx[a] < idx[b]
	})
	mid := len(idx) / 2

	n := len(t.nodes)
	t.nodes = append(t.nodes, kdNode{
		point: point(t.p.Entries[idx[mid]].Color),
		entry: idx[mid],
		axis:  axis,
	})
	// Children get their own copies so the recursive sorts do not disturb
	// each other.
	left := append([]int(nil), idx[:mid]...)
	right := append([]int(nil), idx[mid+1:]...)
	l := t.build(left)
	r := t.build(right)
	t.nodes[n].left, t.nodes[n].right = l, r
	return n
}

func widestAxis(p *palette.Palette, idx []int) int {
	lo := [3]int{255, 255, 255}
	hi := [3]int{0, 0, 0}
	for _, i := range idx {
		pt := point(p.Entries[i].Color)
		for a := 0; a < 3; a++ {
			if pt[a] < lo[a] {
				lo[a] = pt[a]
			}
			if pt[a] > hi[a] {
				hi[a] = pt[a]
			}
		}
	}
	axis := 0
	for a := 1; a < 3; a++ {
		if hi[a]-lo[a] > hi[axis]-lo[axis] {
			axis = a
		}
	}
	return axis
}

type kdBest struct {
	entry int
	dist  int
}

// better reports whether candidate (entry, dist) beats the current best under
// the distance-then-declaration-order rule.
func (b kdBest) better(entry, dist int) bool {
	return b.entry < 0 || dist < b.dist || (dist == b.dist && entry < b.entry)
}

func (t *kdTree) Match(c imaging.RGBColor) *palette.Entry {
	best := kdBest{entry: -1}
	t.search(t.root, point(c), &best)
	return &t.p.Entries[best.entry]
}

func (t *kdTree) search(n int, q [3]int, best *kdBest) {
	if n < 0 {
		return
	}
	node := &t.nodes[n]

	d := 0
	for a := 0; a < 3; a++ {
		diff := q[a] - node.point[a]
		d += diff * diff
	}
	if best.better(node.entry, d) {
		best.entry, best.dist = node.entry, d
	}

	diff := q[node.axis] - node.point[node.axis]
	near, far := node.left, node.right
	if diff > 0 {
		near, far = far, near
	}
	t.search(near, q, best)
	// The far side may still hold an entry at exactly the best distance with a
	// lower index, so only a strictly larger plane distance prunes it.
	if diff*diff <= best.dist {
		t.search(far, q, best)
	}
}
