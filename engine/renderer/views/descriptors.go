package views

import (
	"fmt"

	"github.com/cockroachdb/errors"

	emath "github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer"
	"github.com/spaghettifunk/framering/engine/renderer/frame"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// sceneDescriptors is the descriptor setup shared by the mesh and point
// cloud variants. Set 0 holds the camera at binding 0 and the scene
// parameters at binding 1, read at a dynamic offset. Set 1 holds the
// object storage buffer.
type sceneDescriptors struct {
	globalLayout gpu.DescriptorSetLayout
	objectLayout gpu.DescriptorSetLayout
	pool         gpu.DescriptorPool
	scene        *frame.SceneUniforms
	maxObjects   int
}

func newSceneDescriptors(rc *renderer.RenderContext) (*sceneDescriptors, error) {
	dev := rc.Device
	d := &sceneDescriptors{maxObjects: int(rc.Config.Renderer.MaxObjects)}

	global, r := dev.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Stages: gpu.ShaderStageVertex},
		{Binding: 1, Type: gpu.DescriptorTypeUniformBufferDynamic, Stages: gpu.ShaderStageVertex | gpu.ShaderStageFragment},
	})
	if err := gpu.Check(r, "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	rc.Deletion.PushDescriptorSetLayout(global, "global")
	d.globalLayout = global

	object, r := dev.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: gpu.DescriptorTypeStorageBuffer, Stages: gpu.ShaderStageVertex},
	})
	if err := gpu.Check(r, "vkCreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	rc.Deletion.PushDescriptorSetLayout(object, "object")
	d.objectLayout = object

	scene, err := frame.NewSceneUniforms(dev, rc.Uniforms(), metadata.GPUSceneDataSize, rc.Frames.Len(), rc.Deletion)
	if err != nil {
		return nil, errors.Wrap(err, "could not create scene parameters")
	}
	d.scene = scene

	pool, r := dev.CreateDescriptorPool(10, []gpu.DescriptorPoolSize{
		{Type: gpu.DescriptorTypeUniformBuffer, Count: 10},
		{Type: gpu.DescriptorTypeUniformBufferDynamic, Count: 10},
		{Type: gpu.DescriptorTypeStorageBuffer, Count: 10},
	})
	if err := gpu.Check(r, "vkCreateDescriptorPool"); err != nil {
		return nil, err
	}
	rc.Deletion.PushDescriptorPool(pool, "scene")
	d.pool = pool

	for _, slot := range rc.Frames.Slots() {
		if err := d.initSlot(rc, slot); err != nil {
			return nil, errors.Wrapf(err, "frame slot %d", slot.Index)
		}
	}
	return d, nil
}

func (d *sceneDescriptors) initSlot(rc *renderer.RenderContext, slot *frame.Slot) error {
	dev := rc.Device
	label := fmt.Sprintf("frame %d", slot.Index)

	camera, r := dev.CreateBuffer(metadata.GPUCameraDataSize, gpu.BufferUsageUniformBuffer, gpu.MemoryUsageCPUToGPU)
	if err := gpu.Check(r, "vmaCreateBuffer"); err != nil {
		return err
	}
	rc.Deletion.PushBuffer(camera, label+" camera")
	slot.CameraBuffer = camera

	objects, r := dev.CreateBuffer(uint64(d.maxObjects)*metadata.GPUObjectDataSize, gpu.BufferUsageStorageBuffer, gpu.MemoryUsageCPUToGPU)
	if err := gpu.Check(r, "vmaCreateBuffer"); err != nil {
		return err
	}
	rc.Deletion.PushBuffer(objects, label+" objects")
	slot.ObjectBuffer = objects

	globalSet, r := dev.AllocateDescriptorSet(d.pool, d.globalLayout)
	if err := gpu.Check(r, "vkAllocateDescriptorSets"); err != nil {
		return err
	}
	slot.GlobalDescriptor = globalSet

	objectSet, r := dev.AllocateDescriptorSet(d.pool, d.objectLayout)
	if err := gpu.Check(r, "vkAllocateDescriptorSets"); err != nil {
		return err
	}
	slot.ObjectDescriptor = objectSet

	dev.UpdateDescriptorSets([]gpu.DescriptorWrite{
		{Set: globalSet, Binding: 0, Type: gpu.DescriptorTypeUniformBuffer, Buffer: camera.Buffer, Range: camera.Size},
		{Set: globalSet, Binding: 1, Type: gpu.DescriptorTypeUniformBufferDynamic, Buffer: d.scene.Buffer.Buffer, Range: d.scene.Region.StructSize},
		{Set: objectSet, Binding: 0, Type: gpu.DescriptorTypeStorageBuffer, Buffer: objects.Buffer, Range: objects.Size},
	})
	return nil
}

func (d *sceneDescriptors) layouts() []gpu.DescriptorSetLayout {
	return []gpu.DescriptorSetLayout{d.globalLayout, d.objectLayout}
}

// write fills the uniform and storage memory of the current frame slot and
// returns the bindings to draw with. The slot fence must have been waited
// on this frame.
func (d *sceneDescriptors) write(rc *renderer.RenderContext, objects []metadata.RenderObject, cam emath.Camera) (renderer.FrameBindings, error) {
	if len(objects) > d.maxObjects {
		return renderer.FrameBindings{}, errors.AssertionFailedf("%d objects exceed the object buffer of %d", len(objects), d.maxObjects)
	}
	dev := rc.Device
	slot := rc.CurrentSlot()

	view := cam.View()
	proj := cam.Projection(rc.Extent.Aspect())
	camera := metadata.GPUCameraData{View: view, Proj: proj, ViewProj: proj.Mul4(view)}
	if err := frame.WriteBuffer(dev, slot.CameraBuffer, 0, camera.Bytes()); err != nil {
		return renderer.FrameBindings{}, err
	}

	offset, err := d.scene.Write(dev, rc.FrameIndex(), metadata.DefaultSceneData().Bytes())
	if err != nil {
		return renderer.FrameBindings{}, err
	}

	if len(objects) > 0 {
		data := make([]byte, len(objects)*metadata.GPUObjectDataSize)
		metadata.EncodeObjects(data, objects)
		if err := frame.WriteBuffer(dev, slot.ObjectBuffer, 0, data); err != nil {
			return renderer.FrameBindings{}, err
		}
	}

	return renderer.FrameBindings{
		GlobalSet:   slot.GlobalDescriptor,
		ObjectSet:   slot.ObjectDescriptor,
		SceneOffset: offset,
		ViewProj:    camera.ViewProj,
	}, nil
}
