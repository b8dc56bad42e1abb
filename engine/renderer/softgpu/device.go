// Package softgpu is a headless software implementation of the gpu package
// interfaces. Submissions run asynchronously on a queue goroutine and every
// API misuse the engine could make is detected and counted.
package softgpu

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framering/engine/containers"
	"github.com/spaghettifunk/framering/engine/core"
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// SpirvMagic is the first word of every SPIR-V module.
const SpirvMagic uint32 = 0x07230203

const swapchainOwner = "swapchain"

var ErrLeakedObjects = errors.New("objects still alive at shutdown")

// Options configure the simulated device.
type Options struct {
	// SubmitLatency is how long the queue takes to execute one submission.
	SubmitLatency time.Duration
	Extent        gpu.Extent2D
	ImageCount    int
	Limits        gpu.Limits
}

func DefaultOptions() Options {
	return Options{
		SubmitLatency: 2 * time.Millisecond,
		Extent:        gpu.Extent2D{Width: 1700, Height: 900},
		ImageCount:    3,
		Limits: gpu.Limits{
			MinUniformBufferOffsetAlignment: 256,
			MaxPushConstantsSize:            128,
		},
	}
}

type object struct {
	kind    string
	res     any
	pending int
	owner   string
}

type allocation struct {
	data   []byte
	size   uint64
	memory gpu.MemoryUsage
	mapped bool

	// view is what MapMemory handed out. When pending work reads part of
	// the allocation it is a copy whose guarded bytes hold hostWriteSentinel.
	view    []byte
	guarded []readRange
}

const hostWriteSentinel = 0xA5

type buffer struct {
	size       uint64
	usage      gpu.BufferUsage
	allocation uint64
}

type image struct {
	info       gpu.ImageInfo
	allocation uint64
}

type imageView struct {
	image uint64
}

type renderPass struct {
	info gpu.RenderPassInfo
}

type framebuffer struct {
	info gpu.FramebufferInfo
}

type shaderModule struct {
	words int
}

type pipelineLayout struct {
	info gpu.PipelineLayoutInfo
}

type pipeline struct {
	info gpu.PipelineInfo
}

type descriptorSetLayout struct {
	bindings []gpu.DescriptorBinding
}

type descriptorPool struct {
	maxSets uint32
	sets    []uint64
}

type descriptorSet struct {
	layout *descriptorSetLayout
	writes map[uint32]gpu.DescriptorWrite
}

type commandPool struct {
	buffers []uint64
}

// Device implements gpu.Device.
type Device struct {
	opts Options

	mu      sync.Mutex
	idle    *sync.Cond
	objects *containers.HandleTable[*object]
	stats   Stats
	closed  bool

	// queued counts submissions and presentations not yet executed.
	queued  int
	pending map[*submission]struct{}
	work    chan *work
	done   chan struct{}
}

func NewDevice(opts Options) *Device {
	d := &Device{
		opts:    opts,
		objects: containers.NewHandleTable[*object](),
		pending: make(map[*submission]struct{}),
		work:    make(chan *work, 256),
		done:    make(chan struct{}),
	}
	d.idle = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func lookup[T any](d *Device, id uint64) (T, *object, bool) {
	var zero T
	obj, ok := d.objects.Get(id)
	if !ok {
		return zero, nil, false
	}
	res, ok := obj.res.(T)
	if !ok {
		return zero, nil, false
	}
	return res, obj, true
}

func (d *Device) create(kind string, res any) uint64 {
	return d.objects.Acquire(&object{kind: kind, res: res})
}

func (d *Device) violation(counter *uint64, format string, args ...interface{}) {
	*counter++
	core.LogWarn("softgpu: "+format, args...)
}

// release must be called with mu held. A zero id is ignored.
func (d *Device) release(id uint64, kind string) (*object, bool) {
	if id == 0 {
		return nil, false
	}
	obj, ok := d.objects.Get(id)
	if !ok || obj.kind != kind {
		d.violation(&d.stats.UseAfterDestroy, "destroy of unknown %s %d", kind, id)
		return nil, false
	}
	if obj.pending > 0 {
		d.violation(&d.stats.UseAfterDestroy, "destroy of %s %d referenced by %d pending submissions", kind, id, obj.pending)
	}
	_, _ = d.objects.Release(id)
	return obj, true
}

// exists must be called with mu held.
func (d *Device) exists(id uint64, kind string) bool {
	obj, ok := d.objects.Get(id)
	if !ok || obj.kind != kind {
		d.violation(&d.stats.UseAfterDestroy, "use of unknown %s %d", kind, id)
		return false
	}
	return true
}

func (d *Device) Limits() gpu.Limits {
	return d.opts.Limits
}

func (d *Device) DepthFormat() gpu.Format {
	return gpu.FormatD32Sfloat
}

func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.stats
	s.LiveObjects = 0
	d.objects.Each(func(_ uint64, obj *object) {
		if obj.owner != swapchainOwner {
			s.LiveObjects++
		}
	})
	return s
}

// LiveObjects counts the objects still alive per kind, excluding swapchain
// images.
func (d *Device) LiveObjects() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveObjects()
}

func (d *Device) liveObjects() map[string]int {
	live := map[string]int{}
	d.objects.Each(func(_ uint64, obj *object) {
		if obj.owner != swapchainOwner {
			live[obj.kind]++
		}
	})
	return live
}

// ReadBuffer returns a copy of the memory backing buffer.
func (d *Device) ReadBuffer(b gpu.Buffer) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, _, ok := lookup[*buffer](d, uint64(b))
	if !ok {
		return nil, false
	}
	alloc, _, ok := lookup[*allocation](d, buf.allocation)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(alloc.data))
	copy(out, alloc.data)
	return out, true
}

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage, memory gpu.MemoryUsage) (gpu.AllocatedBuffer, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if size == 0 {
		d.violation(&d.stats.InvalidUsage, "buffer of size 0")
		return gpu.AllocatedBuffer{}, gpu.ErrorValidationFailed
	}
	allocID := d.create("allocation", &allocation{data: make([]byte, size), size: size, memory: memory})
	id := d.create("buffer", &buffer{size: size, usage: usage, allocation: allocID})
	d.stats.AllocatedBytes += size
	return gpu.AllocatedBuffer{Buffer: gpu.Buffer(id), Allocation: gpu.Allocation(allocID), Size: size}, gpu.Success
}

func (d *Device) DestroyBuffer(b gpu.AllocatedBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if obj, ok := d.release(uint64(b.Buffer), "buffer"); ok {
		d.stats.AllocatedBytes -= obj.res.(*buffer).size
	}
	d.release(uint64(b.Allocation), "allocation")
}

func (d *Device) MapMemory(a gpu.Allocation) ([]byte, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	alloc, _, ok := lookup[*allocation](d, uint64(a))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "map of unknown allocation %d", a)
		return nil, gpu.ErrorMemoryMapFailed
	}
	if !alloc.memory.Mappable() || alloc.data == nil {
		d.violation(&d.stats.InvalidUsage, "map of %s allocation %d", alloc.memory, a)
		return nil, gpu.ErrorMemoryMapFailed
	}
	if alloc.mapped {
		return alloc.view, gpu.Success
	}
	alloc.mapped = true
	alloc.guarded = d.pendingReads(uint64(a))
	if len(alloc.guarded) == 0 {
		alloc.view = alloc.data
		return alloc.view, gpu.Success
	}
	alloc.view = make([]byte, len(alloc.data))
	copy(alloc.view, alloc.data)
	for _, r := range alloc.guarded {
		for i := r.start; i < r.end; i++ {
			alloc.view[i] = hostWriteSentinel
		}
	}
	return alloc.view, gpu.Success
}

// pendingReads must be called with mu held.
func (d *Device) pendingReads(alloc uint64) []readRange {
	var out []readRange
	for s := range d.pending {
		for _, r := range s.reads {
			if r.allocation == alloc && r.end > r.start {
				out = append(out, r)
			}
		}
	}
	return out
}

// flushView must be called with mu held. It moves the host writes of a
// guarded view into the allocation and counts the ones that landed on bytes
// pending work reads; those bytes keep the value the GPU is reading.
func (d *Device) flushView(a gpu.Allocation, alloc *allocation) {
	guard := make([]bool, len(alloc.data))
	for _, r := range alloc.guarded {
		for i := r.start; i < r.end; i++ {
			guard[i] = true
		}
	}
	first, last := -1, -1
	for i, b := range alloc.view {
		if !guard[i] {
			alloc.data[i] = b
			continue
		}
		if b != hostWriteSentinel {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first >= 0 {
		d.violation(&d.stats.HostWriteHazards, "host write into bytes %d..%d of allocation %d read by pending work", first, last+1, a)
	}
}

func (d *Device) UnmapMemory(a gpu.Allocation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	alloc, _, ok := lookup[*allocation](d, uint64(a))
	if !ok || !alloc.mapped {
		d.violation(&d.stats.InvalidUsage, "unmap of allocation %d that is not mapped", a)
		return
	}
	if alloc.guarded != nil {
		d.flushView(a, alloc)
	}
	alloc.mapped = false
	alloc.view = nil
	alloc.guarded = nil
}

func (d *Device) CreateImage(info gpu.ImageInfo) (gpu.AllocatedImage, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if info.Extent.Width == 0 || info.Extent.Height == 0 {
		d.violation(&d.stats.InvalidUsage, "image of extent %dx%d", info.Extent.Width, info.Extent.Height)
		return gpu.AllocatedImage{}, gpu.ErrorValidationFailed
	}
	size := uint64(info.Extent.Width) * uint64(info.Extent.Height) * 4
	// Image contents are never read back, so no memory is kept.
	allocID := d.create("allocation", &allocation{size: size, memory: gpu.MemoryUsageGPUOnly})
	id := d.create("image", &image{info: info, allocation: allocID})
	d.stats.AllocatedBytes += size
	return gpu.AllocatedImage{Image: gpu.Image(id), Allocation: gpu.Allocation(allocID), Size: size}, gpu.Success
}

func (d *Device) DestroyImage(i gpu.AllocatedImage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.release(uint64(i.Image), "image"); ok {
		d.stats.AllocatedBytes -= i.Size
	}
	d.release(uint64(i.Allocation), "allocation")
}

func (d *Device) CreateImageView(img gpu.Image, format gpu.Format, aspect gpu.ImageAspect) (gpu.ImageView, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.exists(uint64(img), "image") {
		return 0, gpu.ErrorValidationFailed
	}
	return gpu.ImageView(d.create("image-view", &imageView{image: uint64(img)})), gpu.Success
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if obj, ok := d.objects.Get(uint64(view)); ok && obj.owner == swapchainOwner {
		d.violation(&d.stats.InvalidUsage, "destroy of swapchain image view %d", view)
		return
	}
	d.release(uint64(view), "image-view")
}

func (d *Device) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if info.ColorFormat == gpu.FormatUndefined {
		d.violation(&d.stats.InvalidUsage, "render pass without a color format")
		return 0, gpu.ErrorValidationFailed
	}
	return gpu.RenderPass(d.create("render-pass", &renderPass{info: info})), gpu.Success
}

func (d *Device) DestroyRenderPass(pass gpu.RenderPass) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(pass), "render-pass")
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.exists(uint64(info.RenderPass), "render-pass") {
		return 0, gpu.ErrorValidationFailed
	}
	for _, view := range info.Attachments {
		if !d.exists(uint64(view), "image-view") {
			return 0, gpu.ErrorValidationFailed
		}
	}
	info.Attachments = append([]gpu.ImageView(nil), info.Attachments...)
	return gpu.Framebuffer(d.create("framebuffer", &framebuffer{info: info})), gpu.Success
}

func (d *Device) DestroyFramebuffer(fb gpu.Framebuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(fb), "framebuffer")
}

func (d *Device) CreateShaderModule(code []uint32) (gpu.ShaderModule, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(code) < 5 || code[0] != SpirvMagic {
		d.violation(&d.stats.InvalidUsage, "shader module is not SPIR-V")
		return 0, gpu.ErrorInitializationFailed
	}
	return gpu.ShaderModule(d.create("shader-module", &shaderModule{words: len(code)})), gpu.Success
}

func (d *Device) DestroyShaderModule(module gpu.ShaderModule) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(module), "shader-module")
}

func (d *Device) CreatePipelineLayout(info gpu.PipelineLayoutInfo) (gpu.PipelineLayout, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, l := range info.SetLayouts {
		if !d.exists(uint64(l), "descriptor-set-layout") {
			return 0, gpu.ErrorValidationFailed
		}
	}
	for _, pc := range info.PushConstants {
		if pc.Offset+pc.Size > d.opts.Limits.MaxPushConstantsSize {
			d.violation(&d.stats.InvalidUsage, "push constant range %d+%d exceeds %d", pc.Offset, pc.Size, d.opts.Limits.MaxPushConstantsSize)
			return 0, gpu.ErrorValidationFailed
		}
	}
	info.SetLayouts = append([]gpu.DescriptorSetLayout(nil), info.SetLayouts...)
	info.PushConstants = append([]gpu.PushConstantRange(nil), info.PushConstants...)
	return gpu.PipelineLayout(d.create("pipeline-layout", &pipelineLayout{info: info})), gpu.Success
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(layout), "pipeline-layout")
}

func (d *Device) CreateGraphicsPipeline(info gpu.PipelineInfo) (gpu.Pipeline, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(info.Stages) == 0 {
		d.violation(&d.stats.InvalidUsage, "pipeline without shader stages")
		return 0, gpu.ErrorValidationFailed
	}
	for _, stage := range info.Stages {
		if !d.exists(uint64(stage.Module), "shader-module") {
			return 0, gpu.ErrorValidationFailed
		}
	}
	if !d.exists(uint64(info.Layout), "pipeline-layout") || !d.exists(uint64(info.RenderPass), "render-pass") {
		return 0, gpu.ErrorValidationFailed
	}
	return gpu.Pipeline(d.create("pipeline", &pipeline{info: info})), gpu.Success
}

func (d *Device) DestroyPipeline(p gpu.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(p), "pipeline")
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sorted := append([]gpu.DescriptorBinding(nil), bindings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Binding < sorted[j].Binding })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Binding == sorted[i-1].Binding {
			d.violation(&d.stats.InvalidUsage, "duplicate descriptor binding %d", sorted[i].Binding)
			return 0, gpu.ErrorValidationFailed
		}
	}
	return gpu.DescriptorSetLayout(d.create("descriptor-set-layout", &descriptorSetLayout{bindings: sorted})), gpu.Success
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(layout), "descriptor-set-layout")
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if maxSets == 0 || len(sizes) == 0 {
		d.violation(&d.stats.InvalidUsage, "empty descriptor pool")
		return 0, gpu.ErrorValidationFailed
	}
	return gpu.DescriptorPool(d.create("descriptor-pool", &descriptorPool{maxSets: maxSets})), gpu.Success
}

func (d *Device) DestroyDescriptorPool(p gpu.DescriptorPool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pool, _, ok := lookup[*descriptorPool](d, uint64(p))
	if ok {
		for _, set := range pool.sets {
			d.release(set, "descriptor-set")
		}
	}
	d.release(uint64(p), "descriptor-pool")
}

func (d *Device) AllocateDescriptorSet(p gpu.DescriptorPool, l gpu.DescriptorSetLayout) (gpu.DescriptorSet, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pool, _, ok := lookup[*descriptorPool](d, uint64(p))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "allocate from unknown descriptor pool %d", p)
		return 0, gpu.ErrorValidationFailed
	}
	layout, _, ok := lookup[*descriptorSetLayout](d, uint64(l))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "allocate with unknown descriptor set layout %d", l)
		return 0, gpu.ErrorValidationFailed
	}
	if uint32(len(pool.sets)) >= pool.maxSets {
		return 0, gpu.ErrorOutOfPoolMemory
	}
	id := d.create("descriptor-set", &descriptorSet{layout: layout, writes: map[uint32]gpu.DescriptorWrite{}})
	pool.sets = append(pool.sets, id)
	return gpu.DescriptorSet(id), gpu.Success
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, w := range writes {
		set, obj, ok := lookup[*descriptorSet](d, uint64(w.Set))
		if !ok {
			d.violation(&d.stats.UseAfterDestroy, "update of unknown descriptor set %d", w.Set)
			continue
		}
		if obj.pending > 0 {
			d.violation(&d.stats.UseAfterDestroy, "update of descriptor set %d used by pending work", w.Set)
		}
		binding, ok := set.layout.binding(w.Binding)
		if !ok || binding.Type != w.Type {
			d.violation(&d.stats.InvalidUsage, "write of type %d to binding %d of set %d", w.Type, w.Binding, w.Set)
			continue
		}
		buf, _, ok := lookup[*buffer](d, uint64(w.Buffer))
		if !ok {
			d.violation(&d.stats.UseAfterDestroy, "descriptor write of unknown buffer %d", w.Buffer)
			continue
		}
		want := gpu.BufferUsageUniformBuffer
		if w.Type == gpu.DescriptorTypeStorageBuffer {
			want = gpu.BufferUsageStorageBuffer
		}
		if buf.usage&want == 0 {
			d.violation(&d.stats.InvalidUsage, "buffer %d lacks usage %#x for binding %d", w.Buffer, want, w.Binding)
			continue
		}
		if w.Offset+w.Range > buf.size {
			d.violation(&d.stats.InvalidUsage, "descriptor range %d+%d exceeds buffer %d of %d bytes", w.Offset, w.Range, w.Buffer, buf.size)
			continue
		}
		set.writes[w.Binding] = w
	}
}

func (l *descriptorSetLayout) binding(n uint32) (gpu.DescriptorBinding, bool) {
	for _, b := range l.bindings {
		if b.Binding == n {
			return b, true
		}
	}
	return gpu.DescriptorBinding{}, false
}

func (d *Device) CreateCommandPool() (gpu.CommandPool, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.CommandPool(d.create("command-pool", &commandPool{})), gpu.Success
}

func (d *Device) ResetCommandPool(p gpu.CommandPool) gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	pool, _, ok := lookup[*commandPool](d, uint64(p))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "reset of unknown command pool %d", p)
		return gpu.ErrorValidationFailed
	}
	for _, id := range pool.buffers {
		if cb, _, ok := lookup[*commandBuffer](d, id); ok && cb.state == cbPending {
			d.violation(&d.stats.ResetWhilePending, "reset of command pool %d while command buffer %d is pending", p, id)
			return gpu.ErrorValidationFailed
		}
	}
	for _, id := range pool.buffers {
		if cb, _, ok := lookup[*commandBuffer](d, id); ok {
			cb.reset()
		}
	}
	return gpu.Success
}

func (d *Device) DestroyCommandPool(p gpu.CommandPool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pool, _, ok := lookup[*commandPool](d, uint64(p)); ok {
		for _, id := range pool.buffers {
			d.release(id, "command-buffer")
		}
	}
	d.release(uint64(p), "command-pool")
}

func (d *Device) AllocateCommandBuffer(p gpu.CommandPool) (gpu.CommandBuffer, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pool, _, ok := lookup[*commandPool](d, uint64(p))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "allocate from unknown command pool %d", p)
		return 0, gpu.ErrorValidationFailed
	}
	id := d.create("command-buffer", &commandBuffer{pool: uint64(p)})
	pool.buffers = append(pool.buffers, id)
	return gpu.CommandBuffer(id), gpu.Success
}

// Close drains the queue and stops its goroutine. It reports every object
// still alive except the swapchain images.
func (d *Device) Close() error {
	d.WaitIdle()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.work)
	<-d.done

	d.mu.Lock()
	defer d.mu.Unlock()
	live := d.liveObjects()
	if len(live) == 0 {
		return nil
	}
	kinds := make([]string, 0, len(live))
	for kind, n := range live {
		kinds = append(kinds, kind+"="+strconv.Itoa(n))
	}
	sort.Strings(kinds)
	return errors.Wrapf(ErrLeakedObjects, "%s", strings.Join(kinds, " "))
}
