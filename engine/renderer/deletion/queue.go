// Package deletion registers teardown actions during initialization and
// runs them in reverse order at shutdown.
package deletion

import (
	"fmt"

	"github.com/spaghettifunk/framering/engine/renderer/gpu"
)

// Kind selects which release call an Action makes.
type Kind uint8

const (
	KindBuffer Kind = iota + 1
	KindImage
	KindImageView
	KindFence
	KindSemaphore
	KindCommandPool
	KindRenderPass
	KindFramebuffer
	KindShaderModule
	KindPipelineLayout
	KindPipeline
	KindDescriptorSetLayout
	KindDescriptorPool
)

var kindNames = map[Kind]string{
	KindBuffer:              "buffer",
	KindImage:               "image",
	KindImageView:           "image-view",
	KindFence:               "fence",
	KindSemaphore:           "semaphore",
	KindCommandPool:         "command-pool",
	KindRenderPass:          "render-pass",
	KindFramebuffer:         "framebuffer",
	KindShaderModule:        "shader-module",
	KindPipelineLayout:      "pipeline-layout",
	KindPipeline:            "pipeline",
	KindDescriptorSetLayout: "descriptor-set-layout",
	KindDescriptorPool:      "descriptor-pool",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Action is one teardown step. Buffers and images carry their allocation;
// every other kind only needs Handle.
type Action struct {
	Kind   Kind
	Handle uint64
	Buffer gpu.AllocatedBuffer
	Image  gpu.AllocatedImage
	Label  string
}

func (a Action) String() string {
	if a.Label != "" {
		return a.Kind.String() + " " + a.Label
	}
	return a.Kind.String()
}

// Destroyer is the subset of gpu.Device the queue releases objects through.
type Destroyer interface {
	DestroyBuffer(buffer gpu.AllocatedBuffer)
	DestroyImage(image gpu.AllocatedImage)
	DestroyImageView(view gpu.ImageView)
	DestroyFence(fence gpu.Fence)
	DestroySemaphore(semaphore gpu.Semaphore)
	DestroyCommandPool(pool gpu.CommandPool)
	DestroyRenderPass(pass gpu.RenderPass)
	DestroyFramebuffer(framebuffer gpu.Framebuffer)
	DestroyShaderModule(module gpu.ShaderModule)
	DestroyPipelineLayout(layout gpu.PipelineLayout)
	DestroyPipeline(pipeline gpu.Pipeline)
	DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout)
	DestroyDescriptorPool(pool gpu.DescriptorPool)
}

// Queue is not safe for concurrent use. Push never fails.
type Queue struct {
	actions []Action
	pushed  int
	flushed int
}

func New() *Queue {
	return &Queue{actions: make([]Action, 0, 64)}
}

func (q *Queue) Push(action Action) {
	q.actions = append(q.actions, action)
	q.pushed++
}

func (q *Queue) PushBuffer(buffer gpu.AllocatedBuffer, label string) {
	q.Push(Action{Kind: KindBuffer, Handle: uint64(buffer.Buffer), Buffer: buffer, Label: label})
}

func (q *Queue) PushImage(image gpu.AllocatedImage, label string) {
	q.Push(Action{Kind: KindImage, Handle: uint64(image.Image), Image: image, Label: label})
}

func (q *Queue) PushImageView(view gpu.ImageView, label string) {
	q.Push(Action{Kind: KindImageView, Handle: uint64(view), Label: label})
}

func (q *Queue) PushFence(fence gpu.Fence, label string) {
	q.Push(Action{Kind: KindFence, Handle: uint64(fence), Label: label})
}

func (q *Queue) PushSemaphore(semaphore gpu.Semaphore, label string) {
	q.Push(Action{Kind: KindSemaphore, Handle: uint64(semaphore), Label: label})
}

func (q *Queue) PushCommandPool(pool gpu.CommandPool, label string) {
	q.Push(Action{Kind: KindCommandPool, Handle: uint64(pool), Label: label})
}

func (q *Queue) PushRenderPass(pass gpu.RenderPass, label string) {
	q.Push(Action{Kind: KindRenderPass, Handle: uint64(pass), Label: label})
}

func (q *Queue) PushFramebuffer(framebuffer gpu.Framebuffer, label string) {
	q.Push(Action{Kind: KindFramebuffer, Handle: uint64(framebuffer), Label: label})
}

func (q *Queue) PushShaderModule(module gpu.ShaderModule, label string) {
	q.Push(Action{Kind: KindShaderModule, Handle: uint64(module), Label: label})
}

func (q *Queue) PushPipelineLayout(layout gpu.PipelineLayout, label string) {
	q.Push(Action{Kind: KindPipelineLayout, Handle: uint64(layout), Label: label})
}

func (q *Queue) PushPipeline(pipeline gpu.Pipeline, label string) {
	q.Push(Action{Kind: KindPipeline, Handle: uint64(pipeline), Label: label})
}

func (q *Queue) PushDescriptorSetLayout(layout gpu.DescriptorSetLayout, label string) {
	q.Push(Action{Kind: KindDescriptorSetLayout, Handle: uint64(layout), Label: label})
}

func (q *Queue) PushDescriptorPool(pool gpu.DescriptorPool, label string) {
	q.Push(Action{Kind: KindDescriptorPool, Handle: uint64(pool), Label: label})
}

// Len is the number of pending actions.
func (q *Queue) Len() int {
	return len(q.actions)
}

// Pushed is the number of actions registered over the life of the queue.
func (q *Queue) Pushed() int {
	return q.pushed
}

// Flushed is the number of actions executed over the life of the queue.
func (q *Queue) Flushed() int {
	return q.flushed
}

// Flush runs every pending action, newest first, and empties the queue
// keeping its backing array. It returns how many actions ran.
func (q *Queue) Flush(d Destroyer) int {
	n := len(q.actions)
	for i := n - 1; i >= 0; i-- {
		run(d, q.actions[i])
		q.actions[i] = Action{}
	}
	q.actions = q.actions[:0]
	q.flushed += n
	return n
}

func run(d Destroyer, a Action) {
	switch a.Kind {
	case KindBuffer:
		d.DestroyBuffer(a.Buffer)
	case KindImage:
		d.DestroyImage(a.Image)
	case KindImageView:
		d.DestroyImageView(gpu.ImageView(a.Handle))
	case KindFence:
		d.DestroyFence(gpu.Fence(a.Handle))
	case KindSemaphore:
		d.DestroySemaphore(gpu.Semaphore(a.Handle))
	case KindCommandPool:
		d.DestroyCommandPool(gpu.CommandPool(a.Handle))
	case KindRenderPass:
		d.DestroyRenderPass(gpu.RenderPass(a.Handle))
	case KindFramebuffer:
		d.DestroyFramebuffer(gpu.Framebuffer(a.Handle))
	case KindShaderModule:
		d.DestroyShaderModule(gpu.ShaderModule(a.Handle))
	case KindPipelineLayout:
		d.DestroyPipelineLayout(gpu.PipelineLayout(a.Handle))
	case KindPipeline:
		d.DestroyPipeline(gpu.Pipeline(a.Handle))
	case KindDescriptorSetLayout:
		d.DestroyDescriptorSetLayout(gpu.DescriptorSetLayout(a.Handle))
	case KindDescriptorPool:
		d.DestroyDescriptorPool(gpu.DescriptorPool(a.Handle))
	default:
		panic(fmt.Sprintf("deletion: unknown action %s", a))
	}
}
