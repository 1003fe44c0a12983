package mesh

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"tissuemap/internal/models"
)

// taggedPoint is a source vertex position carrying its tissue id
type taggedPoint struct {
	X, Y, Z  float64
	TissueID uint8
}

// Compare implements the kdtree.Comparable interface
func (p taggedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(taggedPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p taggedPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p taggedPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(taggedPoint)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// taggedPoints satisfies kdtree.Interface
type taggedPoints []taggedPoint

func (p taggedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p taggedPoints) Len() int                              { return len(p) }
func (p taggedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p taggedPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(taggedPlane{taggedPoints: p, Dim: d}, kdtree.MedianOfRandoms(taggedPlane{taggedPoints: p, Dim: d}, 100))
}

// taggedPlane implements kdtree.SortSlicer along one axis
type taggedPlane struct {
	taggedPoints
	kdtree.Dim
}

func (p taggedPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.taggedPoints[i].X < p.taggedPoints[j].X
	case 1:
		return p.taggedPoints[i].Y < p.taggedPoints[j].Y
	case 2:
		return p.taggedPoints[i].Z < p.taggedPoints[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p taggedPlane) Slice(start, end int) kdtree.SortSlicer {
	return taggedPlane{taggedPoints: p.taggedPoints[start:end], Dim: p.Dim}
}

func (p taggedPlane) Swap(i, j int) {
	p.taggedPoints[i], p.taggedPoints[j] = p.taggedPoints[j], p.taggedPoints[i]
}

// TissueIndex answers nearest-tissue queries against a labelled mesh
type TissueIndex struct {
	tree *kdtree.Tree
}

// NewTissueIndex builds a KD-tree over the vertices of src
func NewTissueIndex(src *models.Mesh) *TissueIndex {
	points := make(taggedPoints, len(src.Vertices))
	for i, v := range src.Vertices {
		points[i] = taggedPoint{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z), TissueID: v.TissueID}
	}
	if len(points) == 0 {
		return &TissueIndex{}
	}
	return &TissueIndex{tree: kdtree.New(points, true)}
}

// Nearest returns the tissue id of the source vertex closest to p. An index
// built from an empty mesh reports the background id.
func (ti *TissueIndex) Nearest(p [3]float32) uint8 {
	if ti.tree == nil {
		return models.Background
	}
	q := taggedPoint{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
	got, _ := ti.tree.Nearest(q)
	if got == nil {
		return models.Background
	}
	return got.(taggedPoint).TissueID
}

// TransferTissueIDs assigns each position the tissue id of its nearest
// vertex in src. Simplified or resampled meshes lose their per-vertex tags;
// this restores them from the original.
func TransferTissueIDs(src *models.Mesh, positions [][3]float32) []uint8 {
	index := NewTissueIndex(src)
	ids := make([]uint8, len(positions))
	for i, p := range positions {
		ids[i] = index.Nearest(p)
	}
	return ids
}

// Relabel overwrites the tissue ids of dst with those transferred from src
func Relabel(src, dst *models.Mesh) {
	positions := make([][3]float32, len(dst.Vertices))
	for i, v := range dst.Vertices {
		positions[i] = v.Position()
	}
	for i, id := range TransferTissueIDs(src, positions) {
		dst.Vertices[i].TissueID = id
	}
}
