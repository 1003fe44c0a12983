// Package voxel holds the tissue label volume of a head model and reads and
// writes it as VTK XML ImageData.
package voxel

import (
	"fmt"

	"tissuemap/internal/models"
)

// SourceBackground is the label the segmentation uses for empty space
// before it is remapped to models.Background
const SourceBackground uint8 = 50

// Volume is a regular grid of tissue ids stored x-fastest:
// index = z*nx*ny + y*nx + x
type Volume struct {
	// Dims is the number of voxels along x, y and z
	Dims [3]int

	// Spacing is the voxel size along each axis in mm
	Spacing [3]float64

	// Origin is the position of voxel (0,0,0)
	Origin [3]float64

	Labels []uint8
}

// New allocates an empty volume with unit spacing
func New(nx, ny, nz int) *Volume {
	return &Volume{
		Dims:    [3]int{nx, ny, nz},
		Spacing: [3]float64{1, 1, 1},
		Labels:  make([]uint8, nx*ny*nz),
	}
}

// Validate checks that the label array matches the dimensions
func (v *Volume) Validate() error {
	n := 1
	for axis, d := range v.Dims {
		if d <= 0 {
			return fmt.Errorf("dimension %d must be positive, got %d", axis, d)
		}
		n *= d
	}
	if len(v.Labels) != n {
		return fmt.Errorf("volume %dx%dx%d needs %d labels, got %d",
			v.Dims[0], v.Dims[1], v.Dims[2], n, len(v.Labels))
	}
	return nil
}

// Len returns the number of voxels
func (v *Volume) Len() int {
	return v.Dims[0] * v.Dims[1] * v.Dims[2]
}

func (v *Volume) inside(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < v.Dims[0] && y < v.Dims[1] && z < v.Dims[2]
}

// Index returns the linear offset of voxel (x,y,z)
func (v *Volume) Index(x, y, z int) int {
	return z*v.Dims[0]*v.Dims[1] + y*v.Dims[0] + x
}

// At returns the tissue id at (x,y,z), or background outside the grid
func (v *Volume) At(x, y, z int) uint8 {
	if !v.inside(x, y, z) {
		return models.Background
	}
	return v.Labels[v.Index(x, y, z)]
}

// Set assigns a tissue id; writes outside the grid are ignored
func (v *Volume) Set(x, y, z int, id uint8) {
	if v.inside(x, y, z) {
		v.Labels[v.Index(x, y, z)] = id
	}
}

// RemapBackground replaces every voxel labelled from with to and returns the
// number of voxels changed
func (v *Volume) RemapBackground(from, to uint8) int {
	n := 0
	for i, id := range v.Labels {
		if id == from {
			v.Labels[i] = to
			n++
		}
	}
	return n
}

// Counts returns the number of voxels per tissue id, background excluded
func (v *Volume) Counts() map[uint8]int {
	var hist [256]int
	for _, id := range v.Labels {
		hist[id]++
	}
	counts := make(map[uint8]int)
	for id, n := range hist {
		if n > 0 && uint8(id) != models.Background {
			counts[uint8(id)] = n
		}
	}
	return counts
}

// Downsample keeps every factor-th voxel along each axis. Nearest
// neighbour sampling never invents tissue ids that were not in the input.
func (v *Volume) Downsample(factor int) (*Volume, error) {
	if factor < 1 {
		return nil, fmt.Errorf("downsample factor must be at least 1, got %d", factor)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}

	var dims [3]int
	for i, d := range v.Dims {
		dims[i] = (d + factor - 1) / factor
	}
	out := New(dims[0], dims[1], dims[2])
	out.Origin = v.Origin
	for i, s := range v.Spacing {
		out.Spacing[i] = s * float64(factor)
	}

	for z := 0; z < dims[2]; z++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				out.Labels[out.Index(x, y, z)] = v.Labels[v.Index(x*factor, y*factor, z*factor)]
			}
		}
	}
	return out, nil
}
