// Package mesh defines the geometry-kernel capability surface the terrain
// engine drives, plus Memory, an in-memory polygon kernel implementing it.
//
// The engine never owns vertex buffers. It holds opaque Handles and vertex,
// edge and face indices, and asks the kernel for everything else.
package mesh

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrResourceNotFound is returned by ImportAsset when the asset cannot be read.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrDegenerateGeometry is returned when a boolean or topology operation
	// has no usable geometry to work with.
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// ErrUnknownHandle is returned when an operation names an object that
	// does not exist.
	ErrUnknownHandle = errors.New("unknown mesh handle")
)

// Handle identifies an object owned by the kernel. The zero value is never
// a live object.
type Handle uint32

// NoHandle is the invalid handle.
const NoHandle Handle = 0

// ElementKind is the type of a selected component.
type ElementKind uint8

const (
	ElementObject ElementKind = iota
	ElementFace
	ElementEdge
	ElementVertex
)

// String returns the component name used in selection messages.
func (k ElementKind) String() string {
	switch k {
	case ElementObject:
		return "object"
	case ElementFace:
		return "face"
	case ElementEdge:
		return "edge"
	case ElementVertex:
		return "vertex"
	default:
		return "unknown"
	}
}

// Element is one picked component. Index is ignored for ElementObject.
type Element struct {
	Mesh  Handle
	Kind  ElementKind
	Index int
}

// Face is shorthand for a face element.
func Face(h Handle, index int) Element {
	return Element{Mesh: h, Kind: ElementFace, Index: index}
}

// Selection is an ordered set of picked components.
type Selection []Element

// Faces returns the indices of the selected faces on mesh h, in order.
func (s Selection) Faces(h Handle) []int {
	var out []int
	for _, e := range s {
		if e.Kind == ElementFace && e.Mesh == h {
			out = append(out, e.Index)
		}
	}
	return out
}

// BoolOp selects the boolean operation applied by Kernel.BooleanOp.
type BoolOp uint8

const (
	Union BoolOp = iota
	Difference
)

func (op BoolOp) String() string {
	if op == Difference {
		return "difference"
	}
	return "union"
}

// EdgeInfo describes the elements incident to one edge.
type EdgeInfo struct {
	Vertices [2]int
	Faces    []int
}

// Boundary reports whether the edge borders exactly one face.
func (e EdgeInfo) Boundary() bool {
	return len(e.Faces) == 1
}

// VertexInfo describes the elements incident to one vertex.
type VertexInfo struct {
	Edges []int
	Faces []int
}

// Kernel is the capability set a host geometry kernel exposes to the
// terrain engine. Queries against unknown handles or out-of-range indices
// return zero values; MoveVertex and Transform ignore them.
type Kernel interface {
	CreatePlane(width, depth float64, subdivX, subdivZ int) Handle
	CreateSphere(radius float64, subdivAxis, subdivHeight int) Handle
	CreateBox(width, height, depth float64, subdivX, subdivZ int) Handle
	Duplicate(h Handle) Handle
	Delete(h Handle)
	Exists(h Handle) bool

	VertexPosition(h Handle, v int) mgl64.Vec3
	VertexNormal(h Handle, v int) mgl64.Vec3
	VertexCount(h Handle) int
	EdgeCount(h Handle) int
	FaceCount(h Handle) int
	FaceVertices(h Handle, f int) []int
	EdgeConnectivity(h Handle, e int) EdgeInfo
	VertexConnectivity(h Handle, v int) VertexInfo
	CurrentSelection() Selection
	Select(sel Selection)

	// MoveVertex offsets vertex v by delta when relative is set, otherwise
	// places it at delta.
	MoveVertex(h Handle, v int, delta mgl64.Vec3, relative bool)
	// ExtrudeBoundary duplicates every boundary vertex, offsets the copies
	// and bridges each boundary edge with a wall face. It returns the index
	// range [first, last) of the new vertices.
	ExtrudeBoundary(h Handle, offset mgl64.Vec3) (first, last int, err error)
	// BooleanOp returns a new object; a and b are left untouched.
	BooleanOp(a, b Handle, op BoolOp) (Handle, error)
	// Combine returns a new object holding the geometry of both inputs
	// without any boolean evaluation.
	Combine(a, b Handle) (Handle, error)
	MergeCoincidentVertices(h Handle, epsilon float64) int
	Smooth(h Handle, divisions int) error
	ReducePolyCount(h Handle, percent float64) error
	Transform(h Handle, m mgl64.Mat4)
	GroupObjects(name string, members []Handle) Handle
	Members(group Handle) []Handle

	ImportAsset(path string) (Handle, error)
	Instantiate(asset Handle) Handle
}

// Progress receives percentage updates from long-running loops.
type Progress interface {
	Report(percent float64, status string)
}

// NopProgress discards progress reports.
type NopProgress struct{}

// Report implements Progress.
func (NopProgress) Report(float64, string) {}

// ProgressFunc adapts a function to Progress.
type ProgressFunc func(percent float64, status string)

// Report implements Progress.
func (f ProgressFunc) Report(percent float64, status string) { f(percent, status) }
