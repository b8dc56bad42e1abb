package softgpu

import (
	"time"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

type fence struct {
	signaled bool
	done     chan struct{}
}

func (f *fence) signal() {
	if !f.signaled {
		f.signaled = true
		close(f.done)
	}
}

// semaphore tracks the binary payload as seen in submission order: armed
// means a signal operation was issued that no wait consumed yet.
type semaphore struct {
	armed bool
}

type submission struct {
	cmds  []*commandBuffer
	refs  []uint64
	reads []readRange
	fence *fence
}

type presentation struct {
	image *swapImage
}

type work struct {
	submit  *submission
	present *presentation
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()

	f := &fence{done: make(chan struct{})}
	if signaled {
		f.signal()
	}
	return gpu.Fence(d.create("fence", f)), gpu.Success
}

func (d *Device) WaitForFence(fn gpu.Fence, timeout time.Duration) gpu.Result {
	d.mu.Lock()
	f, _, ok := lookup[*fence](d, uint64(fn))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "wait on unknown fence %d", fn)
		d.mu.Unlock()
		return gpu.ErrorValidationFailed
	}
	d.stats.FenceWaits++
	done := f.done
	d.mu.Unlock()

	if timeout == gpu.WaitForever {
		<-done
		return gpu.Success
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return gpu.Success
	case <-timer.C:
		return gpu.Timeout
	}
}

func (d *Device) ResetFence(fn gpu.Fence) gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, obj, ok := lookup[*fence](d, uint64(fn))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "reset of unknown fence %d", fn)
		return gpu.ErrorValidationFailed
	}
	if obj.pending > 0 {
		d.violation(&d.stats.ResetWhilePending, "reset of fence %d while its submission is pending", fn)
		return gpu.ErrorValidationFailed
	}
	if f.signaled {
		f.signaled = false
		f.done = make(chan struct{})
	}
	return gpu.Success
}

func (d *Device) DestroyFence(fn gpu.Fence) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(fn), "fence")
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, gpu.Result) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return gpu.Semaphore(d.create("semaphore", &semaphore{})), gpu.Success
}

func (d *Device) DestroySemaphore(s gpu.Semaphore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.release(uint64(s), "semaphore")
}

// consume must be called with mu held.
func (d *Device) consume(s gpu.Semaphore) bool {
	sem, _, ok := lookup[*semaphore](d, uint64(s))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "wait on unknown semaphore %d", s)
		return false
	}
	if !sem.armed {
		d.violation(&d.stats.UnsignaledWaits, "wait on semaphore %d that has no pending signal", s)
		return false
	}
	sem.armed = false
	return true
}

// arm must be called with mu held.
func (d *Device) arm(s gpu.Semaphore) bool {
	sem, _, ok := lookup[*semaphore](d, uint64(s))
	if !ok {
		d.violation(&d.stats.UseAfterDestroy, "signal of unknown semaphore %d", s)
		return false
	}
	if sem.armed {
		d.violation(&d.stats.InvalidUsage, "signal of semaphore %d that is already signaled", s)
		return false
	}
	sem.armed = true
	return true
}

func (d *Device) Submit(info gpu.SubmitInfo, signal gpu.Fence) gpu.Result {
	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()
		return gpu.ErrorDeviceLost
	}
	if len(info.WaitSemaphores) != len(info.WaitStages) {
		d.violation(&d.stats.InvalidUsage, "%d wait semaphores with %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
		d.mu.Unlock()
		return gpu.ErrorValidationFailed
	}

	s := &submission{}
	for _, c := range info.CommandBuffers {
		cb, _, ok := lookup[*commandBuffer](d, uint64(c))
		if !ok {
			d.violation(&d.stats.UseAfterDestroy, "submit of unknown command buffer %d", c)
			d.mu.Unlock()
			return gpu.ErrorValidationFailed
		}
		if cb.state != cbExecutable {
			d.violation(&d.stats.InvalidUsage, "submit of command buffer %d that is not executable", c)
			d.mu.Unlock()
			return gpu.ErrorValidationFailed
		}
		s.cmds = append(s.cmds, cb)
		s.refs = append(s.refs, cb.refs...)
		s.reads = append(s.reads, cb.reads...)
		s.refs = append(s.refs, uint64(c))
	}
	if signal != 0 {
		f, fobj, ok := lookup[*fence](d, uint64(signal))
		if !ok {
			d.violation(&d.stats.UseAfterDestroy, "submit with unknown fence %d", signal)
			d.mu.Unlock()
			return gpu.ErrorValidationFailed
		}
		if f.signaled || fobj.pending > 0 {
			d.violation(&d.stats.InvalidUsage, "submit with fence %d that was not reset", signal)
			d.mu.Unlock()
			return gpu.ErrorValidationFailed
		}
		s.fence = f
		s.refs = append(s.refs, uint64(signal))
	}
	for _, sem := range info.WaitSemaphores {
		if !d.consume(sem) {
			d.mu.Unlock()
			return gpu.ErrorValidationFailed
		}
		s.refs = append(s.refs, uint64(sem))
	}
	for _, sem := range info.SignalSemaphores {
		if !d.arm(sem) {
			d.mu.Unlock()
			return gpu.ErrorValidationFailed
		}
		s.refs = append(s.refs, uint64(sem))
	}

	for _, id := range s.refs {
		if obj, ok := d.objects.Get(id); ok {
			obj.pending++
		}
	}
	for _, cb := range s.cmds {
		cb.state = cbPending
	}
	d.pending[s] = struct{}{}
	d.stats.Submissions++
	d.stats.InFlight++
	if d.stats.InFlight > d.stats.MaxInFlight {
		d.stats.MaxInFlight = d.stats.InFlight
	}
	d.queued++
	d.mu.Unlock()

	d.work <- &work{submit: s}
	return gpu.Success
}

func (d *Device) WaitIdle() gpu.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.queued > 0 {
		d.idle.Wait()
	}
	return gpu.Success
}

func (d *Device) run() {
	defer close(d.done)
	for w := range d.work {
		switch {
		case w.submit != nil:
			if d.opts.SubmitLatency > 0 {
				time.Sleep(d.opts.SubmitLatency)
			}
			d.execute(w.submit)
		case w.present != nil:
			d.mu.Lock()
			d.stats.Presents++
			d.queued--
			d.idle.Broadcast()
			d.mu.Unlock()
			w.present.image.release()
		}
	}
}

func (d *Device) execute(s *submission) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, cb := range s.cmds {
		for _, o := range cb.ops {
			switch o.kind {
			case opBeginRenderPass:
				d.stats.RenderPasses++
			case opBindPipeline:
				d.stats.PipelineBinds++
			case opBindDescriptorSets:
				d.stats.DescriptorBinds++
			case opBindVertexBuffer:
				d.stats.VertexBufferBinds++
			case opPushConstants:
				d.stats.PushConstants++
			case opDraw:
				d.stats.Draws++
				d.stats.Vertices += uint64(o.vertexCount) * uint64(o.instanceCount)
			case opCopyBuffer:
				d.copyBuffer(o)
			}
		}
		if cb.oneTime {
			cb.state = cbInvalid
		} else {
			cb.state = cbExecutable
		}
	}
	for _, id := range s.refs {
		if obj, ok := d.objects.Get(id); ok {
			obj.pending--
		}
	}
	delete(d.pending, s)
	if s.fence != nil {
		s.fence.signal()
	}
	d.stats.InFlight--
	d.queued--
	d.idle.Broadcast()
}

// copyBuffer must be called with mu held.
func (d *Device) copyBuffer(o op) {
	src, _, okSrc := lookup[*buffer](d, o.src)
	dst, _, okDst := lookup[*buffer](d, o.dst)
	if !okSrc || !okDst {
		d.violation(&d.stats.UseAfterDestroy, "executed copy from buffer %d to %d after one was destroyed", o.src, o.dst)
		return
	}
	from, _, okFrom := lookup[*allocation](d, src.allocation)
	to, _, okTo := lookup[*allocation](d, dst.allocation)
	if !okFrom || !okTo {
		d.violation(&d.stats.UseAfterDestroy, "executed copy from buffer %d to %d after its memory was freed", o.src, o.dst)
		return
	}
	for _, r := range o.regions {
		copy(to.data[r.DstOffset:r.DstOffset+r.Size], from.data[r.SrcOffset:r.SrcOffset+r.Size])
		d.stats.Copies++
		d.stats.CopiedBytes += r.Size
	}
}
