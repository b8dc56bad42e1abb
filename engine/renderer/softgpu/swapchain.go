package softgpu

import (
	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

type swapImage struct {
	index uint32
	image uint64
	view  gpu.ImageView
	// free holds a token while the image is not owned by the application
	// or the presentation engine.
	free chan struct{}
}

func (i *swapImage) release() {
	i.free <- struct{}{}
}

// Swapchain implements gpu.Swapchain over a fixed set of offscreen images.
// Images are handed out in order and become available again once their
// presentation executed on the queue.
type Swapchain struct {
	dev    *Device
	format gpu.Format
	extent gpu.Extent2D
	images []*swapImage
	views  []gpu.ImageView
	next   uint32
}

func newSwapchain(d *Device, extent gpu.Extent2D, count int) *Swapchain {
	sc := &Swapchain{dev: d, format: gpu.FormatB8g8r8a8Srgb, extent: extent}

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < count; i++ {
		img := d.objects.Acquire(&object{kind: "image", owner: swapchainOwner, res: &image{
			info: gpu.ImageInfo{Format: sc.format, Extent: extent, Usage: gpu.ImageUsageColorAttachment},
		}})
		view := d.objects.Acquire(&object{kind: "image-view", owner: swapchainOwner, res: &imageView{image: img}})
		si := &swapImage{index: uint32(i), image: img, view: gpu.ImageView(view), free: make(chan struct{}, 1)}
		si.free <- struct{}{}
		sc.images = append(sc.images, si)
		sc.views = append(sc.views, si.view)
	}
	return sc
}

func (s *Swapchain) Format() gpu.Format {
	return s.format
}

func (s *Swapchain) Extent() gpu.Extent2D {
	return s.extent
}

func (s *Swapchain) ImageViews() []gpu.ImageView {
	return s.views
}

func (s *Swapchain) AcquireNextImage(signal gpu.Semaphore) (uint32, gpu.Result) {
	img := s.images[s.next]
	s.next = (s.next + 1) % uint32(len(s.images))

	<-img.free

	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		img.release()
		return 0, gpu.ErrorDeviceLost
	}
	if !d.arm(signal) {
		img.release()
		return 0, gpu.ErrorValidationFailed
	}
	d.stats.Acquires++
	return img.index, gpu.Success
}

func (s *Swapchain) Present(wait gpu.Semaphore, imageIndex uint32) gpu.Result {
	if int(imageIndex) >= len(s.images) {
		return gpu.ErrorOutOfDate
	}
	img := s.images[imageIndex]

	d := s.dev
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return gpu.ErrorDeviceLost
	}
	if !d.consume(wait) {
		d.mu.Unlock()
		img.release()
		return gpu.ErrorValidationFailed
	}
	d.queued++
	d.mu.Unlock()

	d.work <- &work{present: &presentation{image: img}}
	return gpu.Success
}

// destroy releases the swapchain images. The queue must be idle.
func (s *Swapchain) destroy() {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, img := range s.images {
		_, _ = d.objects.Release(uint64(img.view))
		_, _ = d.objects.Release(img.image)
	}
	s.images = nil
	s.views = nil
}
