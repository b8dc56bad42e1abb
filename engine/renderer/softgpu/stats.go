package softgpu

// Stats is a snapshot of what the software device executed and of every
// API misuse it detected.
type Stats struct {
	Submissions uint64
	Presents    uint64
	Acquires    uint64
	FenceWaits  uint64

	RenderPasses      uint64
	Draws             uint64
	Vertices          uint64
	PipelineBinds     uint64
	DescriptorBinds   uint64
	VertexBufferBinds uint64
	PushConstants     uint64
	Copies            uint64
	CopiedBytes       uint64

	InFlight    int
	MaxInFlight int

	LiveObjects    int
	AllocatedBytes uint64

	// UseAfterDestroy counts references to released handles and releases
	// of objects still referenced by pending work.
	UseAfterDestroy uint64
	// ResetWhilePending counts resets of fences, command buffers and pools
	// the queue still holds.
	ResetWhilePending uint64
	// UnsignaledWaits counts waits on semaphores no one will signal.
	UnsignaledWaits uint64
	// HostWriteHazards counts host writes into mapped bytes that a pending
	// submission reads.
	HostWriteHazards uint64
	// InvalidUsage counts every other rejected call.
	InvalidUsage uint64
}

// Violations is the total number of detected misuses.
func (s Stats) Violations() uint64 {
	return s.UseAfterDestroy + s.ResetWhilePending + s.UnsignaledWaits + s.HostWriteHazards + s.InvalidUsage
}
