package population

import (
	"math"

	"footfall/server/internal/agent"
)

var smoothingKernel = [3][3]float64{
	{1, 2, 1},
	{2, 4, 2},
	{1, 2, 1},
}

const kernelWeight = 16

// DensityGrid accumulates how often agents occupy each cell.
type DensityGrid struct {
	size  float64
	cols  int
	rows  int
	cells []uint64
	total uint64
}

// DensitySnapshot is the diagnostics view of a DensityGrid. Cells are the
// smoothed counts in row-major order.
type DensitySnapshot struct {
	CellSize float64   `json:"cellSize"`
	Cols     int       `json:"cols"`
	Rows     int       `json:"rows"`
	Total    uint64    `json:"total"`
	Peak     float64   `json:"peak"`
	Cells    []float64 `json:"cells,omitempty"`
}

func NewDensityGrid(width, height, size float64) *DensityGrid {
	if size <= 0 {
		size = 10
	}
	cols := int(math.Floor(width / size))
	rows := int(math.Floor(height / size))
	if cols < 0 {
		cols = 0
	}
	if rows < 0 {
		rows = 0
	}
	return &DensityGrid{size: size, cols: cols, rows: rows, cells: make([]uint64, cols*rows)}
}

func (g *DensityGrid) Cols() int     { return g.cols }
func (g *DensityGrid) Rows() int     { return g.rows }
func (g *DensityGrid) Total() uint64 { return g.total }

// Count returns the raw visit count of cell (i, j).
func (g *DensityGrid) Count(i, j int) uint64 {
	if i < 0 || i >= g.cols || j < 0 || j >= g.rows {
		return 0
	}
	return g.cells[j*g.cols+i]
}

// Update records the cell of every agent. Agents outside the grid are ignored.
func (g *DensityGrid) Update(agents []*agent.Agent) {
	for _, a := range agents {
		i := int(math.Floor(a.Pos.X / g.size))
		j := int(math.Floor(a.Pos.Y / g.size))
		if i < 0 || i >= g.cols || j < 0 || j >= g.rows {
			continue
		}
		g.cells[j*g.cols+i]++
		g.total++
	}
}

// Smoothed convolves the counts with a 3x3 binomial kernel. Neighbours
// outside the grid contribute nothing.
func (g *DensityGrid) Smoothed() []float64 {
	out := make([]float64, len(g.cells))
	for j := 0; j < g.rows; j++ {
		for i := 0; i < g.cols; i++ {
			sum := 0.0
			for kj := -1; kj <= 1; kj++ {
				for ki := -1; ki <= 1; ki++ {
					ni, nj := i+ki, j+kj
					if ni < 0 || ni >= g.cols || nj < 0 || nj >= g.rows {
						continue
					}
					sum += float64(g.cells[nj*g.cols+ni]) * smoothingKernel[ki+1][kj+1]
				}
			}
			out[j*g.cols+i] = sum / kernelWeight
		}
	}
	return out
}

// Snapshot copies the smoothed grid. Cells are omitted when withCells is false.
func (g *DensityGrid) Snapshot(withCells bool) DensitySnapshot {
	smoothed := g.Smoothed()
	peak := 0.0
	for _, v := range smoothed {
		peak = math.Max(peak, v)
	}
	snap := DensitySnapshot{CellSize: g.size, Cols: g.cols, Rows: g.rows, Total: g.total, Peak: peak}
	if withCells {
		snap.Cells = smoothed
	}
	return snap
}

func (g *DensityGrid) Reset() {
	for i := range g.cells {
		g.cells[i] = 0
	}
	g.total = 0
}
