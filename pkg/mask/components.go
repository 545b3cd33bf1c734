package mask

// 4-connectivity: right, left, down, up.
var neighbors = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// Labels assigns a component id to every foreground cell of b using
// 4-connectivity. Ids start at 1 and follow row-major discovery order;
// background cells stay 0. sizes[i] is the pixel count of label i+1.
func Labels(b *Binary) (labels []int, sizes []int) {
	labels = make([]int, len(b.Data))
	stack := make([]int, 0, 64)
	next := 1

	for start, v := range b.Data {
		if v == 0 || labels[start] != 0 {
			continue
		}

		// Explicit stack instead of recursion, a pupil can cover most of the tile.
		count := 0
		labels[start] = next
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			ci := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			count++

			cx, cy := ci%b.W, ci/b.W
			for _, d := range neighbors {
				nx, ny := cx+d[0], cy+d[1]
				if nx < 0 || nx >= b.W || ny < 0 || ny >= b.H {
					continue
				}
				ni := ny*b.W + nx
				if b.Data[ni] != 0 && labels[ni] == 0 {
					labels[ni] = next
					stack = append(stack, ni)
				}
			}
		}

		sizes = append(sizes, count)
		next++
	}
	return labels, sizes
}

// LargestComponent keeps only the largest 4-connected foreground region of
// b and returns it along with its pixel count. Ties go to the region found
// first in row-major order. An all-background mask returns an empty mask
// and 0.
func LargestComponent(b *Binary) (*Binary, int) {
	labels, sizes := Labels(b)
	out := NewBinary(b.W, b.H)
	if len(sizes) == 0 {
		return out, 0
	}

	best := 0
	for i, n := range sizes {
		if n > sizes[best] {
			best = i
		}
	}

	keep := best + 1
	for i, l := range labels {
		if l == keep {
			out.Data[i] = 1
		}
	}
	return out, sizes[best]
}

// FillHoles floods the background of b starting at the first background
// cell in row-major order. Background cells the flood cannot reach are
// interior holes; they are folded into the foreground. The filled mask and
// the number of hole pixels are returned. b itself is not modified.
//
// Reflections of the camera's light source show up as bright spots inside
// the pupil, which the model tends to leave out of its map.
func FillHoles(b *Binary) (*Binary, int) {
	out := b.Clone()

	seed := -1
	for i, v := range b.Data {
		if v == 0 {
			seed = i
			break
		}
	}
	if seed < 0 {
		return out, 0
	}

	reached := make([]bool, len(b.Data))
	reached[seed] = true
	stack := []int{seed}
	for len(stack) > 0 {
		ci := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cx, cy := ci%b.W, ci/b.W
		for _, d := range neighbors {
			nx, ny := cx+d[0], cy+d[1]
			if nx < 0 || nx >= b.W || ny < 0 || ny >= b.H {
				continue
			}
			ni := ny*b.W + nx
			if b.Data[ni] == 0 && !reached[ni] {
				reached[ni] = true
				stack = append(stack, ni)
			}
		}
	}

	holes := 0
	for i, v := range b.Data {
		if v == 0 && !reached[i] {
			out.Data[i] = 1
			holes++
		}
	}
	return out, holes
}
