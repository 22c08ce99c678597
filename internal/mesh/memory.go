package mesh

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// object is a node in the Memory scene: either a mesh or a group.
type object struct {
	name    string
	mesh    *polyMesh
	members []Handle // groups only
}

// Memory is an in-memory Kernel. It is not safe for concurrent use; the
// terrain engine serializes all calls.
type Memory struct {
	objects   map[Handle]*object
	next      Handle
	selection Selection
}

// NewMemory creates an empty scene.
func NewMemory() *Memory {
	return &Memory{objects: make(map[Handle]*object)}
}

var _ Kernel = (*Memory)(nil)

func (k *Memory) add(name string, m *polyMesh) Handle {
	k.next++
	k.objects[k.next] = &object{name: name, mesh: m}
	return k.next
}

func (k *Memory) mesh(h Handle) *polyMesh {
	if o, ok := k.objects[h]; ok {
		return o.mesh
	}
	return nil
}

func (k *Memory) CreatePlane(width, depth float64, subdivX, subdivZ int) Handle {
	return k.add("plane", newPlane(width, depth, subdivX, subdivZ))
}

func (k *Memory) CreateSphere(radius float64, subdivAxis, subdivHeight int) Handle {
	return k.add("sphere", newSphere(radius, subdivAxis, subdivHeight))
}

func (k *Memory) CreateBox(width, height, depth float64, subdivX, subdivZ int) Handle {
	return k.add("box", newBox(width, height, depth, subdivX, subdivZ))
}

// Duplicate deep-copies a mesh. Duplicating a group returns NoHandle.
func (k *Memory) Duplicate(h Handle) Handle {
	m := k.mesh(h)
	if m == nil {
		return NoHandle
	}
	return k.add(k.objects[h].name, m.clone())
}

// Delete removes an object. Deleting a group deletes its members too.
func (k *Memory) Delete(h Handle) {
	o, ok := k.objects[h]
	if !ok {
		return
	}
	delete(k.objects, h)
	for _, member := range o.members {
		k.Delete(member)
	}
	for _, other := range k.objects {
		other.members = removeHandle(other.members, h)
	}
	kept := k.selection[:0]
	for _, e := range k.selection {
		if e.Mesh != h {
			kept = append(kept, e)
		}
	}
	k.selection = kept
}

func (k *Memory) Exists(h Handle) bool {
	_, ok := k.objects[h]
	return ok
}

// Name returns the object's name, mainly for diagnostics.
func (k *Memory) Name(h Handle) string {
	if o, ok := k.objects[h]; ok {
		return o.name
	}
	return ""
}

// Rename sets the object's name.
func (k *Memory) Rename(h Handle, name string) {
	if o, ok := k.objects[h]; ok {
		o.name = name
	}
}

// Objects returns the live handles in creation order.
func (k *Memory) Objects() []Handle {
	out := make([]Handle, 0, len(k.objects))
	for h := range k.objects {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (k *Memory) VertexPosition(h Handle, v int) mgl64.Vec3 {
	m := k.mesh(h)
	if m == nil || v < 0 || v >= len(m.verts) {
		return mgl64.Vec3{}
	}
	return m.verts[v]
}

func (k *Memory) VertexNormal(h Handle, v int) mgl64.Vec3 {
	m := k.mesh(h)
	if m == nil || v < 0 || v >= len(m.verts) {
		return mgl64.Vec3{}
	}
	return m.vertexNormal(v)
}

func (k *Memory) VertexCount(h Handle) int {
	if m := k.mesh(h); m != nil {
		return len(m.verts)
	}
	return 0
}

func (k *Memory) EdgeCount(h Handle) int {
	if m := k.mesh(h); m != nil {
		return len(m.topology().edges)
	}
	return 0
}

func (k *Memory) FaceCount(h Handle) int {
	if m := k.mesh(h); m != nil {
		return len(m.faces)
	}
	return 0
}

func (k *Memory) FaceVertices(h Handle, f int) []int {
	m := k.mesh(h)
	if m == nil || f < 0 || f >= len(m.faces) {
		return nil
	}
	return append([]int(nil), m.faces[f]...)
}

func (k *Memory) EdgeConnectivity(h Handle, e int) EdgeInfo {
	m := k.mesh(h)
	if m == nil {
		return EdgeInfo{}
	}
	t := m.topology()
	if e < 0 || e >= len(t.edges) {
		return EdgeInfo{}
	}
	return EdgeInfo{
		Vertices: t.edges[e],
		Faces:    append([]int(nil), t.edgeFaces[e]...),
	}
}

func (k *Memory) VertexConnectivity(h Handle, v int) VertexInfo {
	m := k.mesh(h)
	if m == nil || v < 0 || v >= len(m.verts) {
		return VertexInfo{}
	}
	t := m.topology()
	return VertexInfo{
		Edges: append([]int(nil), t.vertEdges[v]...),
		Faces: uniqueInts(t.vertFaces[v]),
	}
}

func uniqueInts(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func (k *Memory) CurrentSelection() Selection {
	return append(Selection(nil), k.selection...)
}

func (k *Memory) Select(sel Selection) {
	k.selection = append(Selection(nil), sel...)
}

func (k *Memory) MoveVertex(h Handle, v int, delta mgl64.Vec3, relative bool) {
	m := k.mesh(h)
	if m == nil || v < 0 || v >= len(m.verts) {
		return
	}
	if relative {
		m.verts[v] = m.verts[v].Add(delta)
	} else {
		m.verts[v] = delta
	}
}

// Transform applies m to every vertex. A mirroring matrix also reverses
// face winding so normals keep pointing outwards.
func (k *Memory) Transform(h Handle, mat mgl64.Mat4) {
	if o, ok := k.objects[h]; ok && o.mesh == nil {
		for _, member := range o.members {
			k.Transform(member, mat)
		}
		return
	}
	m := k.mesh(h)
	if m == nil {
		return
	}
	for i, p := range m.verts {
		m.verts[i] = mat.Mul4x1(p.Vec4(1)).Vec3()
	}
	if mat.Det() < 0 {
		for _, f := range m.faces {
			reverseRing(f)
		}
		m.invalidate()
	}
}

// GroupObjects creates a group owning members. Members already in another
// group are moved.
func (k *Memory) GroupObjects(name string, members []Handle) Handle {
	var kept []Handle
	for _, h := range members {
		if !k.Exists(h) {
			continue
		}
		for _, o := range k.objects {
			o.members = removeHandle(o.members, h)
		}
		kept = append(kept, h)
	}
	k.next++
	k.objects[k.next] = &object{name: name, members: kept}
	return k.next
}

// Members returns a group's members; nil for meshes.
func (k *Memory) Members(group Handle) []Handle {
	if o, ok := k.objects[group]; ok {
		return append([]Handle(nil), o.members...)
	}
	return nil
}

func removeHandle(hs []Handle, h Handle) []Handle {
	out := hs[:0]
	for _, x := range hs {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

// Instantiate places a fresh copy of an imported asset in the scene.
func (k *Memory) Instantiate(asset Handle) Handle {
	return k.Duplicate(asset)
}

func (k *Memory) Combine(a, b Handle) (Handle, error) {
	ma, mb := k.mesh(a), k.mesh(b)
	if ma == nil || mb == nil {
		return NoHandle, fmt.Errorf("combine %d+%d: %w", a, b, ErrUnknownHandle)
	}
	out := ma.clone()
	out.appendMesh(mb)
	return k.add(k.objects[a].name, out), nil
}
