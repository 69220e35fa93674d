package processor

// Default minimum sizes (in pixels) of the connected regions kept by the two
// denoising passes of the validity mask.
const (
	DefaultMinSizePass1 = 49
	DefaultMinSizePass2 = 47
)

var neighbours4 = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// ComputeValidityMask derives a boolean validity mask from a scene
// classification grid. A pixel starts valid when its class belongs to keep,
// then the raw mask is cleaned up in a fixed order: connected regions smaller
// than minSizePass1 are dropped, enclosed holes are filled, a morphological
// closing with a 3x3 square element bridges thin gaps, and a second pass drops
// regions smaller than minSizePass2. Connectivity is 4-neighbourhood
// throughout.
func ComputeValidityMask(classification [][]int, keep map[int]struct{}, minSizePass1, minSizePass2 int) [][]bool {
	mask := make([][]bool, len(classification))
	for y, row := range classification {
		mask[y] = make([]bool, len(row))
		for x, class := range row {
			_, mask[y][x] = keep[class]
		}
	}
	removeSmallObjects(mask, minSizePass1)
	fillHoles(mask)
	mask = erode3x3(dilate3x3(mask))
	removeSmallObjects(mask, minSizePass2)
	return mask
}

// ApplyMask writes nodata into values wherever mask is false.
// values and mask must have the same shape.
func ApplyMask(values [][]float64, mask [][]bool, nodata float64) {
	for y, row := range values {
		for x := range row {
			if !mask[y][x] {
				row[x] = nodata
			}
		}
	}
}

// removeSmallObjects clears every 4-connected true region of less than
// minSize pixels.
func removeSmallObjects(mask [][]bool, minSize int) {
	h := len(mask)
	if h == 0 || minSize <= 1 {
		return
	}
	w := len(mask[0])
	visited := make([][]bool, h)
	for y := range visited {
		visited[y] = make([]bool, w)
	}
	var component, stack [][2]int
	for y0 := 0; y0 < h; y0++ {
		for x0 := 0; x0 < w; x0++ {
			if !mask[y0][x0] || visited[y0][x0] {
				continue
			}
			component = component[:0]
			stack = append(stack[:0], [2]int{y0, x0})
			visited[y0][x0] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				component = append(component, p)
				for _, d := range neighbours4 {
					if y, x := p[0]+d[0], p[1]+d[1]; y >= 0 && y < h && x >= 0 && x < w && mask[y][x] && !visited[y][x] {
						visited[y][x] = true
						stack = append(stack, [2]int{y, x})
					}
				}
			}
			if len(component) < minSize {
				for _, p := range component {
					mask[p[0]][p[1]] = false
				}
			}
		}
	}
}

// fillHoles turns false pockets fully enclosed by true pixels into true. The
// background is identified by a flood fill of the false pixels reachable from
// the grid border.
func fillHoles(mask [][]bool) {
	h := len(mask)
	if h == 0 {
		return
	}
	w := len(mask[0])
	outside := make([][]bool, h)
	for y := range outside {
		outside[y] = make([]bool, w)
	}
	var stack [][2]int
	push := func(y, x int) {
		if y >= 0 && y < h && x >= 0 && x < w && !mask[y][x] && !outside[y][x] {
			outside[y][x] = true
			stack = append(stack, [2]int{y, x})
		}
	}
	for x := 0; x < w; x++ {
		push(0, x)
		push(h-1, x)
	}
	for y := 0; y < h; y++ {
		push(y, 0)
		push(y, w-1)
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range neighbours4 {
			push(p[0]+d[0], p[1]+d[1])
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !mask[y][x] && !outside[y][x] {
				mask[y][x] = true
			}
		}
	}
}

// dilate3x3 sets a pixel when any pixel of its 3x3 neighbourhood is set.
// Pixels outside the grid count as unset.
func dilate3x3(mask [][]bool) [][]bool {
	h := len(mask)
	out := make([][]bool, h)
	if h == 0 {
		return out
	}
	w := len(mask[0])
	for y := 0; y < h; y++ {
		out[y] = make([]bool, w)
		for x := 0; x < w; x++ {
		window:
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if yy, xx := y+dy, x+dx; yy >= 0 && yy < h && xx >= 0 && xx < w && mask[yy][xx] {
						out[y][x] = true
						break window
					}
				}
			}
		}
	}
	return out
}

// erode3x3 keeps a pixel only when its whole 3x3 neighbourhood is set.
// Pixels outside the grid count as set, so a mask touching the border is not
// eroded from the outside and closing leaves an all-true mask unchanged.
func erode3x3(mask [][]bool) [][]bool {
	h := len(mask)
	out := make([][]bool, h)
	if h == 0 {
		return out
	}
	w := len(mask[0])
	for y := 0; y < h; y++ {
		out[y] = make([]bool, w)
		for x := 0; x < w; x++ {
			out[y][x] = true
		window:
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if yy, xx := y+dy, x+dx; yy >= 0 && yy < h && xx >= 0 && xx < w && !mask[yy][xx] {
						out[y][x] = false
						break window
					}
				}
			}
		}
	}
	return out
}
