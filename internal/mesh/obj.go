package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/udhos/gwob"
)

// ImportAsset loads a Wavefront OBJ file as a new object. Any failure to
// open or parse the file is reported as ErrResourceNotFound. Faces are
// triangulated on import.
func (k *Memory) ImportAsset(path string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return NoHandle, fmt.Errorf("import %s: %w: %w", path, ErrResourceNotFound, err)
	}
	defer f.Close()

	m, err := readOBJ(path, f)
	if err != nil {
		return NoHandle, fmt.Errorf("import %s: %w: %w", path, ErrResourceNotFound, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return k.add(name, m), nil
}

// readOBJ converts a parsed OBJ stream into a polyMesh. The parser skips
// malformed records and only reports them through its logger, so a stream
// that leaves no whole triangle behind is rejected here.
func readOBJ(name string, r io.Reader) (*polyMesh, error) {
	var problems []string
	o, err := gwob.NewObjFromReader(name, r, &gwob.ObjParserOptions{
		IgnoreNormals: true,
		Logger:        func(msg string) { problems = append(problems, msg) },
	})
	if err != nil {
		return nil, err
	}
	if len(o.Indices) == 0 || len(o.Indices)%3 != 0 {
		if len(problems) > 0 {
			return nil, fmt.Errorf("no usable faces: %s", problems[0])
		}
		return nil, fmt.Errorf("no faces")
	}

	m := &polyMesh{verts: make([]mgl64.Vec3, o.NumberOfElements())}
	for i := range m.verts {
		x, y, z := o.VertexCoordinates(i)
		m.verts[i] = mgl64.Vec3{float64(x), float64(y), float64(z)}
	}
	m.faces = make([][]int, 0, len(o.Indices)/3)
	for i := 0; i < len(o.Indices); i += 3 {
		m.faces = append(m.faces, []int{o.Indices[i], o.Indices[i+1], o.Indices[i+2]})
	}
	return m, nil
}

// WriteOBJ writes the given objects as one OBJ stream, one "g" record per
// mesh. Groups are expanded to their members and faces are fanned into
// triangles.
func (k *Memory) WriteOBJ(w io.Writer, handles ...Handle) error {
	var (
		coord   []float32
		indices []int
		groups  []*gwob.Group
	)
	var collect func(h Handle) error
	collect = func(h Handle) error {
		o, ok := k.objects[h]
		if !ok {
			return fmt.Errorf("write obj %d: %w", h, ErrUnknownHandle)
		}
		if o.mesh == nil {
			for _, member := range o.members {
				if err := collect(member); err != nil {
					return err
				}
			}
			return nil
		}
		base := len(coord) / 3
		for _, p := range o.mesh.verts {
			coord = append(coord, float32(p[0]), float32(p[1]), float32(p[2]))
		}
		g := &gwob.Group{Name: fmt.Sprintf("%s_%d", o.name, h), IndexBegin: len(indices)}
		for _, f := range o.mesh.faces {
			for i := 1; i+1 < len(f); i++ {
				indices = append(indices, base+f[0], base+f[i], base+f[i+1])
			}
		}
		g.IndexCount = len(indices) - g.IndexBegin
		groups = append(groups, g)
		return nil
	}
	for _, h := range handles {
		if err := collect(h); err != nil {
			return err
		}
	}

	obj, err := gwob.NewObjFromVertex(coord, indices)
	if err != nil {
		return fmt.Errorf("write obj: %w", err)
	}
	obj.Groups = groups

	bw := bufio.NewWriter(w)
	if err := obj.ToWriter(bw); err != nil {
		return fmt.Errorf("write obj: %w", err)
	}
	return bw.Flush()
}
