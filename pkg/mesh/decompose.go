// Package mesh splits the merged head mesh into one self-contained
// geometry per tissue and provides the helpers the renderer needs around it.
package mesh

import (
	"fmt"
	"runtime"
	"sort"

	"tissuemap/internal/models"
)

// IndexError reports a face that references a vertex outside the mesh
type IndexError struct {
	// Face is the index of the offending face
	Face int

	// Corner is which of the three face indices is invalid
	Corner int

	// Index is the referenced vertex index
	Index int32

	// VertexCount is the number of vertices in the mesh
	VertexCount int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("mesh: face %d corner %d references vertex %d, mesh has %d vertices",
		e.Face, e.Corner, e.Index, e.VertexCount)
}

// checkIndices returns an IndexError for the first face referencing a
// vertex outside m.Vertices
func checkIndices(m *models.Mesh) error {
	n := len(m.Vertices)
	for fi, f := range m.Faces {
		for c, idx := range f {
			if idx < 0 || int(idx) >= n {
				return &IndexError{Face: fi, Corner: c, Index: idx, VertexCount: n}
			}
		}
	}
	return nil
}

// groupFaces buckets face indices by the tissue of their first vertex,
// preserving face order inside each bucket
func groupFaces(m *models.Mesh) map[uint8][]int {
	groups := make(map[uint8][]int)
	for fi, f := range m.Faces {
		tid := m.Vertices[f[0]].TissueID
		groups[tid] = append(groups[tid], fi)
	}
	return groups
}

// builder holds scratch space reused across tissues by one worker
type builder struct {
	m     *models.Mesh
	local []int32
}

func newBuilder(m *models.Mesh) *builder {
	local := make([]int32, len(m.Vertices))
	for i := range local {
		local[i] = -1
	}
	return &builder{m: m, local: local}
}

// build copies the vertices referenced by faces into a new sub-mesh,
// assigning local indices in the order vertices are first encountered
func (b *builder) build(tid uint8, faces []int) *models.TissueSubMesh {
	sub := &models.TissueSubMesh{
		TissueID: tid,
		Faces:    make([][3]uint32, 0, len(faces)),
	}

	for _, fi := range faces {
		var tri [3]uint32
		for c, g := range b.m.Faces[fi] {
			l := b.local[g]
			if l < 0 {
				l = int32(len(sub.Positions))
				b.local[g] = l
				sub.Positions = append(sub.Positions, b.m.Vertices[g].Position())
				sub.GlobalIndex = append(sub.GlobalIndex, g)
			}
			tri[c] = uint32(l)
		}
		sub.Faces = append(sub.Faces, tri)
	}

	// reset only what this tissue touched
	for _, g := range sub.GlobalIndex {
		b.local[g] = -1
	}
	return sub
}

// Decompose splits m into one sub-mesh per tissue id that owns at least
// one face. A face belongs to the tissue of its first vertex.
func Decompose(m *models.Mesh) (map[uint8]*models.TissueSubMesh, error) {
	if err := checkIndices(m); err != nil {
		return nil, err
	}

	groups := groupFaces(m)
	result := make(map[uint8]*models.TissueSubMesh, len(groups))

	b := newBuilder(m)
	for tid, faces := range groups {
		result[tid] = b.build(tid, faces)
	}
	return result, nil
}

// DecomposeParallel produces the same result as Decompose, building the
// per-tissue geometries on up to workers goroutines. workers <= 0 uses
// every available CPU.
func DecomposeParallel(m *models.Mesh, workers int) (map[uint8]*models.TissueSubMesh, error) {
	if err := checkIndices(m); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	groups := groupFaces(m)
	if workers > len(groups) {
		workers = len(groups)
	}
	if workers <= 1 {
		return Decompose(m)
	}

	type job struct {
		tid   uint8
		faces []int
	}
	jobs := make(chan job)
	results := make(chan *models.TissueSubMesh)

	for w := 0; w < workers; w++ {
		go func() {
			b := newBuilder(m)
			for j := range jobs {
				results <- b.build(j.tid, j.faces)
			}
		}()
	}

	go func() {
		for _, tid := range Tissues(groups) {
			jobs <- job{tid: tid, faces: groups[tid]}
		}
		close(jobs)
	}()

	result := make(map[uint8]*models.TissueSubMesh, len(groups))
	for completed := 0; completed < len(groups); completed++ {
		sub := <-results
		result[sub.TissueID] = sub
	}
	return result, nil
}

// Tissues returns the keys of a tissue keyed map in ascending order
func Tissues[V any](m map[uint8]V) []uint8 {
	ids := make([]uint8, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StraddlingFaces returns the faces whose vertices do not all carry the
// same tissue id. Decompose assigns such faces by their first vertex; a
// clean merge of per-tissue surfaces produces none. Out-of-range indices
// are skipped.
func StraddlingFaces(m *models.Mesh) []int {
	var out []int
	n := int32(len(m.Vertices))
	for fi, f := range m.Faces {
		if f[0] < 0 || f[1] < 0 || f[2] < 0 || f[0] >= n || f[1] >= n || f[2] >= n {
			continue
		}
		t := m.Vertices[f[0]].TissueID
		if m.Vertices[f[1]].TissueID != t || m.Vertices[f[2]].TissueID != t {
			out = append(out, fi)
		}
	}
	return out
}
