package models

// Background is the tissue identifier reserved for void space around the head
const Background uint8 = 0

// Vertex is a single mesh vertex tagged with the tissue it belongs to
type Vertex struct {
	// X, Y, Z is the vertex position
	X, Y, Z float32

	// TissueID is the tissue tag stored per vertex in the container
	TissueID uint8
}

// Position returns the vertex coordinates as an array
func (v Vertex) Position() [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}

// Face is a triangle referencing three vertices of the merged mesh.
// Indices are kept signed because the container stores them as int32.
type Face [3]int32

// Mesh is the merged head mesh as stored in the container: every tissue
// shares one vertex array and one face array.
type Mesh struct {
	Vertices []Vertex
	Faces    []Face
}

// TissueSubMesh is the independent geometry of one tissue after
// decomposition. Faces reference Positions with local indices only.
type TissueSubMesh struct {
	// TissueID is the tissue this geometry belongs to
	TissueID uint8

	// Positions holds the deduplicated vertex positions in first-encountered order
	Positions [][3]float32

	// Faces are triangles indexing into Positions
	Faces [][3]uint32

	// GlobalIndex maps each local vertex back to its index in the merged mesh
	GlobalIndex []int32
}

// VertexCount returns the number of local vertices
func (s *TissueSubMesh) VertexCount() int {
	return len(s.Positions)
}

// FaceCount returns the number of triangles
func (s *TissueSubMesh) FaceCount() int {
	return len(s.Faces)
}

// Tissue is one entry of the label table shipped with the head model
type Tissue struct {
	// ID is the tag used in the mesh container and the voxel volume
	ID uint8 `json:"id" yaml:"id"`

	// Name is the tissue name used to look up physical properties
	Name string `json:"name" yaml:"name"`

	// Color is the display color in [0,1]; nil when the label has none
	Color *[3]float64 `json:"color,omitempty" yaml:"color,omitempty"`
}

// PropertyBounds is the display range of one scalar property across all
// tissues. It is recomputed whenever the scalar set changes.
type PropertyBounds struct {
	Min    float64
	Max    float64
	Median float64
	Mean   float64

	// Count is the number of tissues that contributed a valid value
	Count int
}

// Empty reports whether no tissue contributed to the bounds
func (b PropertyBounds) Empty() bool {
	return b.Count == 0
}
