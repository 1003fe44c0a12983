package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"tissuemap/internal/models"
)

// Bounds returns the axis-aligned bounding box of a sub-mesh. An empty
// sub-mesh yields a zero box.
func Bounds(sub *models.TissueSubMesh) r3.Box {
	if len(sub.Positions) == 0 {
		return r3.Box{}
	}
	lo := r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	hi := r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, p := range sub.Positions {
		v := toVec(p)
		lo = r3.Vec{X: math.Min(lo.X, v.X), Y: math.Min(lo.Y, v.Y), Z: math.Min(lo.Z, v.Z)}
		hi = r3.Vec{X: math.Max(hi.X, v.X), Y: math.Max(hi.Y, v.Y), Z: math.Max(hi.Z, v.Z)}
	}
	return r3.Box{Min: lo, Max: hi}
}

// Centroid returns the mean position of the sub-mesh vertices
func Centroid(sub *models.TissueSubMesh) r3.Vec {
	var sum r3.Vec
	if len(sub.Positions) == 0 {
		return sum
	}
	for _, p := range sub.Positions {
		sum = r3.Add(sum, toVec(p))
	}
	return r3.Scale(1/float64(len(sub.Positions)), sum)
}

// MeshBounds returns the bounding box of every vertex of the merged mesh
func MeshBounds(m *models.Mesh) r3.Box {
	all := &models.TissueSubMesh{Positions: make([][3]float32, len(m.Vertices))}
	for i, v := range m.Vertices {
		all.Positions[i] = v.Position()
	}
	return Bounds(all)
}

func toVec(p [3]float32) r3.Vec {
	return r3.Vec{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
}
