package systems

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/frame"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

var (
	ErrDuplicateName = errors.New("name already registered")
	ErrEmptyMesh     = errors.New("mesh has no vertices")
	ErrStaticMesh    = errors.New("mesh was not created dynamic")
)

type MeshSystemConfig struct {
	MaxMeshCount int
}

// MeshSystem owns every mesh and its GPU buffers, keyed by name. Vertex
// data reaches device local memory through a staging buffer and the upload
// context.
type MeshSystem struct {
	config *MeshSystemConfig
	dev    gpu.Device
	upload *frame.UploadContext
	queue  *deletion.Queue
	meshes map[string]*metadata.Mesh
}

func NewMeshSystem(config *MeshSystemConfig, dev gpu.Device, upload *frame.UploadContext, queue *deletion.Queue) (*MeshSystem, error) {
	if config.MaxMeshCount == 0 {
		return nil, errors.New("mesh system config.MaxMeshCount must be > 0")
	}
	return &MeshSystem{
		config: config,
		dev:    dev,
		upload: upload,
		queue:  queue,
		meshes: make(map[string]*metadata.Mesh, config.MaxMeshCount),
	}, nil
}

// Create uploads vertices and registers the mesh under name. Static meshes
// release their staging buffer as soon as the copy completed; dynamic ones
// keep it for Refresh.
func (ms *MeshSystem) Create(name string, vertices []metadata.Vertex, dynamic bool) (*metadata.Mesh, error) {
	if _, ok := ms.meshes[name]; ok {
		return nil, errors.Wrapf(ErrDuplicateName, "mesh %s", name)
	}
	if len(vertices) == 0 {
		return nil, errors.Wrapf(ErrEmptyMesh, "mesh %s", name)
	}
	if len(ms.meshes) >= ms.config.MaxMeshCount {
		return nil, errors.Newf("mesh system is full (%d meshes)", ms.config.MaxMeshCount)
	}

	mesh := &metadata.Mesh{Name: name, Vertices: vertices, Dynamic: dynamic}
	size := mesh.ByteSize()

	staging, r := ms.dev.CreateBuffer(size, gpu.BufferUsageTransferSrc, gpu.MemoryUsageCPUOnly)
	if err := gpu.Check(r, "vmaCreateBuffer"); err != nil {
		return nil, err
	}
	if err := ms.writeStaging(staging, vertices); err != nil {
		ms.dev.DestroyBuffer(staging)
		return nil, err
	}

	vertexBuffer, r := ms.dev.CreateBuffer(size, gpu.BufferUsageVertexBuffer|gpu.BufferUsageTransferDst, gpu.MemoryUsageGPUOnly)
	if err := gpu.Check(r, "vmaCreateBuffer"); err != nil {
		ms.dev.DestroyBuffer(staging)
		return nil, err
	}
	ms.queue.PushBuffer(vertexBuffer, "mesh "+name)

	if err := ms.copy(staging, vertexBuffer, size); err != nil {
		return nil, err
	}

	if dynamic {
		ms.queue.PushBuffer(staging, "mesh "+name+" staging")
		mesh.Staging = staging
	} else {
		// The upload has completed, nothing reads the staging buffer anymore.
		ms.dev.DestroyBuffer(staging)
	}
	mesh.VertexBuffer = vertexBuffer
	ms.meshes[name] = mesh

	core.LogDebug("mesh %s uploaded (%d vertices, dynamic=%v)", name, len(vertices), dynamic)
	return mesh, nil
}

// CreateAnonymous registers vertices under a generated name.
func (ms *MeshSystem) CreateAnonymous(vertices []metadata.Vertex, dynamic bool) (*metadata.Mesh, error) {
	return ms.Create("mesh-"+uuid.NewString(), vertices, dynamic)
}

// Refresh replaces the vertices of a dynamic mesh in place. The vertex
// count cannot change.
func (ms *MeshSystem) Refresh(name string, vertices []metadata.Vertex) error {
	mesh := ms.Get(name)
	if !mesh.Dynamic {
		return errors.Wrapf(ErrStaticMesh, "refresh of mesh %s", name)
	}
	if len(vertices) != len(mesh.Vertices) {
		return errors.Newf("refresh of mesh %s with %d vertices, it holds %d", name, len(vertices), len(mesh.Vertices))
	}
	if err := ms.writeStaging(mesh.Staging, vertices); err != nil {
		return err
	}
	if err := ms.copy(mesh.Staging, mesh.VertexBuffer, mesh.ByteSize()); err != nil {
		return err
	}
	mesh.Vertices = vertices
	return nil
}

func (ms *MeshSystem) writeStaging(staging gpu.AllocatedBuffer, vertices []metadata.Vertex) error {
	mapped, r := ms.dev.MapMemory(staging.Allocation)
	if err := gpu.Check(r, "vmaMapMemory"); err != nil {
		return err
	}
	metadata.EncodeVertices(mapped, vertices)
	ms.dev.UnmapMemory(staging.Allocation)
	return nil
}

func (ms *MeshSystem) copy(src, dst gpu.AllocatedBuffer, size uint64) error {
	return ms.upload.ImmediateSubmit(func(cmd gpu.CommandBuffer) {
		ms.dev.CmdCopyBuffer(cmd, src.Buffer, dst.Buffer, []gpu.BufferCopy{{Size: size}})
	})
}

// Get returns the mesh registered under name. Asking for a name that was
// never created is a programming error and panics.
func (ms *MeshSystem) Get(name string) *metadata.Mesh {
	mesh, ok := ms.meshes[name]
	if !ok {
		panic(errors.AssertionFailedf("mesh %q is not registered", name))
	}
	return mesh
}

func (ms *MeshSystem) Lookup(name string) (*metadata.Mesh, bool) {
	mesh, ok := ms.meshes[name]
	return mesh, ok
}

func (ms *MeshSystem) Len() int {
	return len(ms.meshes)
}

func (ms *MeshSystem) Names() []string {
	names := make([]string, 0, len(ms.meshes))
	for name := range ms.meshes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown forgets every mesh. Buffers are released by the deletion queue.
func (ms *MeshSystem) Shutdown() error {
	ms.meshes = map[string]*metadata.Mesh{}
	return nil
}
