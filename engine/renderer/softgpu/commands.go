package softgpu

import (
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

type cbState int

const (
	cbInitial cbState = iota
	cbRecording
	cbExecutable
	cbPending
	// cbInvalid follows the execution of a one time submit buffer.
	cbInvalid
)

type opKind int

const (
	opBeginRenderPass opKind = iota
	opBindPipeline
	opBindDescriptorSets
	opBindVertexBuffer
	opPushConstants
	opDraw
	opCopyBuffer
)

type op struct {
	kind          opKind
	src, dst      uint64
	regions       []gpu.BufferCopy
	vertexCount   uint32
	instanceCount uint32
}

// readRange is a byte range of an allocation that recorded commands read.
type readRange struct {
	allocation uint64
	start, end uint64
}

type commandBuffer struct {
	pool    uint64
	state   cbState
	oneTime bool
	ops     []op
	// refs are the objects the recorded commands use.
	refs  []uint64
	reads []readRange

	inPass      bool
	pipeline    *pipeline
	vertexBound bool
}

func (cb *commandBuffer) reset() {
	cb.state = cbInitial
	cb.ops = cb.ops[:0]
	cb.refs = cb.refs[:0]
	cb.reads = cb.reads[:0]
	cb.inPass = false
	cb.pipeline = nil
	cb.vertexBound = false
}

func (d *Device) BeginCommandBuffer(c gpu.CommandBuffer, oneTimeSubmit bool) gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, _, ok := lookup[*commandBuffer](d, uint64(c))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "begin of unknown command buffer %d", c)
		return gpu.ErrorValidationFailed
	}
	switch cb.state {
	case cbPending:
		d.violation(&d.stats.ResetWhilePending, "begin of command buffer %d while pending", c)
		return gpu.ErrorValidationFailed
	case cbRecording:
		d.violation(&d.stats.InvalidUsage, "begin of command buffer %d already recording", c)
		return gpu.ErrorValidationFailed
	}
	cb.reset()
	cb.state = cbRecording
	cb.oneTime = oneTimeSubmit
	return gpu.Success
}

func (d *Device) EndCommandBuffer(c gpu.CommandBuffer) gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.recording(c, "end")
	if !ok {
		return gpu.ErrorValidationFailed
	}
	if cb.inPass {
		d.violation(&d.stats.InvalidUsage, "end of command buffer %d inside a render pass", c)
		return gpu.ErrorValidationFailed
	}
	cb.state = cbExecutable
	return gpu.Success
}

func (d *Device) ResetCommandBuffer(c gpu.CommandBuffer) gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, _, ok := lookup[*commandBuffer](d, uint64(c))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "reset of unknown command buffer %d", c)
		return gpu.ErrorValidationFailed
	}
	if cb.state == cbPending {
		d.violation(&d.stats.ResetWhilePending, "reset of command buffer %d while pending", c)
		return gpu.ErrorValidationFailed
	}
	cb.reset()
	return gpu.Success
}

// recording must be called with mu held.
func (d *Device) recording(c gpu.CommandBuffer, what string) (*commandBuffer, bool) {
	cb, _, ok := lookup[*commandBuffer](d, uint64(c))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "%s on unknown command buffer %d", what, c)
		return nil, false
	}
	if cb.state != cbRecording {
		d.violation(&d.stats.InvalidUsage, "%s on command buffer %d that is not recording", what, c)
		return nil, false
	}
	return cb, true
}

func (d *Device) CmdBeginRenderPass(c gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.recording(c, "vkCmdBeginRenderPass")
	if !ok {
		return
	}
	if cb.inPass {
		d.violation(&d.stats.InvalidUsage, "nested render pass in command buffer %d", c)
		return
	}
	if !d.exists(uint64(begin.RenderPass), "render-pass") || !d.exists(uint64(begin.Framebuffer), "framebuffer") {
		return
	}
	cb.inPass = true
	cb.refs = append(cb.refs, uint64(begin.RenderPass), uint64(begin.Framebuffer))
	cb.ops = append(cb.ops, op{kind: opBeginRenderPass})
}

func (d *Device) CmdEndRenderPass(c gpu.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.recording(c, "vkCmdEndRenderPass")
	if !ok {
		return
	}
	if !cb.inPass {
		d.violation(&d.stats.InvalidUsage, "end of render pass outside a render pass in command buffer %d", c)
		return
	}
	cb.inPass = false
}

func (d *Device) CmdBindPipeline(c gpu.CommandBuffer, p gpu.Pipeline) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.recording(c, "vkCmdBindPipeline")
	if !ok {
		return
	}
	pl, _, ok := lookup[*pipeline](d, uint64(p))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "bind of unknown pipeline %d", p)
		return
	}
	cb.pipeline = pl
	cb.refs = append(cb.refs, uint64(p))
	cb.ops = append(cb.ops, op{kind: opBindPipeline})
}

func (d *Device) CmdBindDescriptorSets(c gpu.CommandBuffer, l gpu.PipelineLayout, firstSet uint32, sets []gpu.DescriptorSet, dynamicOffsets []uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.recording(c, "vkCmdBindDescriptorSets")
	if !ok {
		return
	}
	layout, _, ok := lookup[*pipelineLayout](d, uint64(l))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "bind with unknown pipeline layout %d", l)
		return
	}
	if int(firstSet)+len(sets) > len(layout.info.SetLayouts) {
		d.violation(&d.stats.InvalidUsage, "sets %d..%d exceed the %d sets of layout %d", firstSet, int(firstSet)+len(sets), len(layout.info.SetLayouts), l)
		return
	}

	next := 0
	refs := []uint64{uint64(l)}
	var reads []readRange
	for _, s := range sets {
		set, _, ok := lookup[*descriptorSet](d, uint64(s))
		if !ok {
			d.violation(&d.stats.UseAfterDestroy, "bind of unknown descriptor set %d", s)
			return
		}
		refs = append(refs, uint64(s))
		for _, b := range set.layout.bindings {
			w, written := set.writes[b.Binding]
			if !written {
				d.violation(&d.stats.InvalidUsage, "binding %d of descriptor set %d was never written", b.Binding, s)
				return
			}
			refs = append(refs, uint64(w.Buffer))
			buf, _, ok := lookup[*buffer](d, uint64(w.Buffer))
			if !ok {
				d.violation(&d.stats.UseAfterDestroy, "descriptor set %d points at destroyed buffer %d", s, w.Buffer)
				return
			}
			var offset uint64
			if b.Type.IsDynamic() {
				if next >= len(dynamicOffsets) {
					d.violation(&d.stats.InvalidUsage, "missing dynamic offset for binding %d of set %d", b.Binding, s)
					return
				}
				offset = uint64(dynamicOffsets[next])
				next++
				if align := d.opts.Limits.MinUniformBufferOffsetAlignment; align > 0 && offset%align != 0 {
					d.violation(&d.stats.InvalidUsage, "dynamic offset %d is not a multiple of %d", offset, align)
					return
				}
				if w.Offset+offset+w.Range > buf.size {
					d.violation(&d.stats.InvalidUsage, "dynamic range %d+%d+%d exceeds buffer %d of %d bytes", w.Offset, offset, w.Range, w.Buffer, buf.size)
					return
				}
			}
			start := w.Offset + offset
			reads = append(reads, readRange{allocation: buf.allocation, start: start, end: start + w.Range})
		}
	}
	if next != len(dynamicOffsets) {
		d.violation(&d.stats.InvalidUsage, "%d dynamic offsets given for %d dynamic bindings", len(dynamicOffsets), next)
		return
	}
	cb.refs = append(cb.refs, refs...)
	cb.reads = append(cb.reads, reads...)
	cb.ops = append(cb.ops, op{kind: opBindDescriptorSets})
}

func (d *Device) CmdBindVertexBuffer(c gpu.CommandBuffer, b gpu.Buffer, offset uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.recording(c, "vkCmdBindVertexBuffers")
	if !ok {
		return
	}
	buf, _, ok := lookup[*buffer](d, uint64(b))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "bind of unknown vertex buffer %d", b)
		return
	}
	if buf.usage&gpu.BufferUsageVertexBuffer == 0 || offset >= buf.size {
		d.violation(&d.stats.InvalidUsage, "buffer %d bound as vertex buffer at offset %d", b, offset)
		return
	}
	cb.vertexBound = true
	cb.refs = append(cb.refs, uint64(b))
	cb.reads = append(cb.reads, readRange{allocation: buf.allocation, start: offset, end: buf.size})
	cb.ops = append(cb.ops, op{kind: opBindVertexBuffer})
}

func (d *Device) CmdPushConstants(c gpu.CommandBuffer, l gpu.PipelineLayout, stages gpu.ShaderStage, offset uint32, data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.recording(c, "vkCmdPushConstants")
	if !ok {
		return
	}
	layout, _, ok := lookup[*pipelineLayout](d, uint64(l))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "push constants with unknown layout %d", l)
		return
	}
	end := offset + uint32(len(data))
	covered := false
	for _, r := range layout.info.PushConstants {
		if r.Stages&stages == stages && offset >= r.Offset && end <= r.Offset+r.Size {
			covered = true
			break
		}
	}
	if !covered {
		d.violation(&d.stats.InvalidUsage, "push constants %d..%d not covered by layout %d", offset, end, l)
		return
	}
	cb.refs = append(cb.refs, uint64(l))
	cb.ops = append(cb.ops, op{kind: opPushConstants})
}

func (d *Device) CmdDraw(c gpu.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.recording(c, "vkCmdDraw")
	if !ok {
		return
	}
	if !cb.inPass || cb.pipeline == nil {
		d.violation(&d.stats.InvalidUsage, "draw outside a render pass or without a pipeline in command buffer %d", c)
		return
	}
	if len(cb.pipeline.info.VertexInput.Bindings) > 0 && !cb.vertexBound {
		d.violation(&d.stats.InvalidUsage, "draw without a vertex buffer in command buffer %d", c)
		return
	}
	cb.ops = append(cb.ops, op{kind: opDraw, vertexCount: vertexCount, instanceCount: instanceCount})
}

func (d *Device) CmdCopyBuffer(c gpu.CommandBuffer, src, dst gpu.Buffer, regions []gpu.BufferCopy) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cb, ok := d.recording(c, "vkCmdCopyBuffer")
	if !ok {
		return
	}
	if cb.inPass {
		d.violation(&d.stats.InvalidUsage, "copy inside a render pass in command buffer %d", c)
		return
	}
	s, _, okSrc := lookup[*buffer](d, uint64(src))
	t, _, okDst := lookup[*buffer](d, uint64(dst))
	if !okSrc || !okDst {
		d.violation(&d.stats.UseAfterDestroy, "copy between unknown buffers %d and %d", src, dst)
		return
	}
	if s.usage&gpu.BufferUsageTransferSrc == 0 || t.usage&gpu.BufferUsageTransferDst == 0 {
		d.violation(&d.stats.InvalidUsage, "copy from %d to %d without transfer usage", src, dst)
		return
	}
	for _, r := range regions {
		if r.SrcOffset+r.Size > s.size || r.DstOffset+r.Size > t.size {
			d.violation(&d.stats.InvalidUsage, "copy region %+v out of bounds", r)
			return
		}
	}
	for _, r := range regions {
		cb.reads = append(cb.reads, readRange{allocation: s.allocation, start: r.SrcOffset, end: r.SrcOffset + r.Size})
	}
	cb.refs = append(cb.refs, uint64(src), uint64(dst))
	cb.ops = append(cb.ops, op{
		kind:    opCopyBuffer,
		src:     uint64(src),
		dst:     uint64(dst),
		regions: append([]gpu.BufferCopy(nil), regions...),
	})
}
