package frame

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/renderer/deletion"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// UniformAllocator carves aligned per-slot slices out of one buffer.
type UniformAllocator struct {
	// Alignment is the device minimum uniform buffer offset alignment. It is
	// a power of two or zero.
	Alignment uint64
}

// Pad rounds size up to the alignment; with a zero alignment it is the
// identity.
func (a UniformAllocator) Pad(size uint64) uint64 {
	if a.Alignment == 0 {
		return size
	}
	return (size + a.Alignment - 1) &^ (a.Alignment - 1)
}

// Region lays out slots copies of a structure of structSize bytes. The
// stride is computed on every call so a layout change is never served a
// stale value.
func (a UniformAllocator) Region(structSize uint64, slots int) Region {
	return Region{
		StructSize: structSize,
		Stride:     a.Pad(structSize),
		Slots:      slots,
	}
}

// Region is the layout of a partitioned uniform buffer.
type Region struct {
	StructSize uint64
	Stride     uint64
	Slots      int
}

// Size is the number of bytes the backing buffer needs.
func (r Region) Size() uint64 {
	return r.Stride * uint64(r.Slots)
}

// Offset is the first byte of slice i.
func (r Region) Offset(i int) uint64 {
	return uint64(i) * r.Stride
}

// Range returns the half open byte range [start, end) slice i occupies.
func (r Region) Range(i int) (uint64, uint64) {
	start := r.Offset(i)
	return start, start + r.StructSize
}

// SceneUniforms is a uniform buffer holding one slice of frame global
// scene data per frame slot.
type SceneUniforms struct {
	Buffer gpu.AllocatedBuffer
	Region Region
}

func NewSceneUniforms(dev gpu.Allocator, alloc UniformAllocator, structSize uint64, slots int, queue *deletion.Queue) (*SceneUniforms, error) {
	region := alloc.Region(structSize, slots)
	buf, r := dev.CreateBuffer(region.Size(), gpu.BufferUsageUniformBuffer, gpu.MemoryUsageCPUToGPU)
	if err := gpu.Check(r, "vmaCreateBuffer"); err != nil {
		return nil, err
	}
	queue.PushBuffer(buf, "scene parameters")
	return &SceneUniforms{Buffer: buf, Region: region}, nil
}

// Write copies data into slice i and returns the dynamic offset that
// selects it at bind time. The caller must own slot i, meaning its fence
// was waited on this frame.
func (s *SceneUniforms) Write(dev gpu.Allocator, i int, data []byte) (uint32, error) {
	if i < 0 || i >= s.Region.Slots {
		return 0, errors.AssertionFailedf("scene uniform slice %d out of %d", i, s.Region.Slots)
	}
	if uint64(len(data)) > s.Region.StructSize {
		return 0, errors.AssertionFailedf("scene uniform data of %d bytes exceeds %d", len(data), s.Region.StructSize)
	}
	offset := s.Region.Offset(i)
	if err := WriteBuffer(dev, s.Buffer, offset, data); err != nil {
		return 0, err
	}
	return uint32(offset), nil
}

// WriteBuffer maps buf and copies data at offset.
func WriteBuffer(dev gpu.Allocator, buf gpu.AllocatedBuffer, offset uint64, data []byte) error {
	if offset+uint64(len(data)) > buf.Size {
		return errors.AssertionFailedf("write of %d bytes at %d overflows buffer of %d", len(data), offset, buf.Size)
	}
	mapped, r := dev.MapMemory(buf.Allocation)
	if err := gpu.Check(r, "vmaMapMemory"); err != nil {
		return err
	}
	copy(mapped[offset:], data)
	dev.UnmapMemory(buf.Allocation)
	return nil
}
