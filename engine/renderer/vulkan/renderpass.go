package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// CreateRenderPass creates a single subpass pass that clears and stores the
// color attachment for presentation. A depth attachment is added when
// info.DepthFormat is set; it is cleared and discarded.
func (d *Device) CreateRenderPass(info gpu.RenderPassInfo) (gpu.RenderPass, gpu.Result) {
	// Main subpass
	subpass := vk.SubpassDescription{
		PipelineBindPoint: vk.PipelineBindPointGraphics,
	}

	attachmentDescriptions := []vk.AttachmentDescription{
		{
			Format:         vk.Format(info.ColorFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,  // Do not expect any particular layout before render pass starts.
			FinalLayout:    vk.ImageLayoutPresentSrc, // Transitioned to after the render pass
		},
	}

	subpass.ColorAttachmentCount = 1
	subpass.PColorAttachments = []vk.AttachmentReference{
		{
			Attachment: 0, // Attachment description array index
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) | vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	if info.DepthFormat != gpu.FormatUndefined {
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         vk.Format(info.DepthFormat),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}

		// The depth image is shared by every frame in flight.
		dependency.SrcStageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
		dependency.DstStageMask |= vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit)
		dependency.SrcAccessMask |= vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
		dependency.DstAccessMask |= vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit)
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var pass vk.RenderPass
	if res := vk.CreateRenderPass(d.LogicalDevice, &renderpassCreateInfo, nil, &pass); res != vk.Success {
		return 0, check(res, "vkCreateRenderPass")
	}
	return gpu.RenderPass(d.renderPasses.Acquire(pass)), gpu.Success
}

func (d *Device) DestroyRenderPass(id gpu.RenderPass) {
	if pass, ok := release(d.renderPasses, uint64(id), "render pass"); ok {
		vk.DestroyRenderPass(d.LogicalDevice, pass, nil)
	}
}

func (d *Device) CreateFramebuffer(info gpu.FramebufferInfo) (gpu.Framebuffer, gpu.Result) {
	pass, ok := lookup(d.renderPasses, uint64(info.RenderPass), "render pass")
	if !ok {
		return 0, gpu.ErrorValidationFailed
	}
	attachments := make([]vk.ImageView, len(info.Attachments))
	for i, id := range info.Attachments {
		view, ok := lookup(d.imageViews, uint64(id), "image view")
		if !ok {
			return 0, gpu.ErrorValidationFailed
		}
		attachments[i] = view
	}

	createInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          1,
	}

	var framebuffer vk.Framebuffer
	if res := vk.CreateFramebuffer(d.LogicalDevice, &createInfo, nil, &framebuffer); res != vk.Success {
		return 0, check(res, "vkCreateFramebuffer")
	}
	return gpu.Framebuffer(d.framebuffers.Acquire(framebuffer)), gpu.Success
}

func (d *Device) DestroyFramebuffer(id gpu.Framebuffer) {
	if framebuffer, ok := release(d.framebuffers, uint64(id), "framebuffer"); ok {
		vk.DestroyFramebuffer(d.LogicalDevice, framebuffer, nil)
	}
}

func (d *Device) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, vk.Result) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	res := vk.CreateImageView(d.LogicalDevice, &viewCreateInfo, nil, &view)
	return view, res
}

func (d *Device) CreateImageView(image gpu.Image, format gpu.Format, aspect gpu.ImageAspect) (gpu.ImageView, gpu.Result) {
	img, ok := lookup(d.images, uint64(image), "image")
	if !ok {
		return 0, gpu.ErrorValidationFailed
	}
	view, res := d.createImageView(img, vk.Format(format), vk.ImageAspectFlags(aspect))
	if res != vk.Success {
		return 0, check(res, "vkCreateImageView")
	}
	return gpu.ImageView(d.imageViews.Acquire(view)), gpu.Success
}

func (d *Device) DestroyImageView(id gpu.ImageView) {
	if view, ok := release(d.imageViews, uint64(id), "image view"); ok {
		vk.DestroyImageView(d.LogicalDevice, view, nil)
	}
}
