package loaders

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/rand"

	emath "github.com/spaghettifunk/framering/engine/math"
	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// Runner runs a batch of jobs to completion.
type Runner interface {
	RunBatch(tasks []metadata.JobTask) error
	Workers() int
}

// RandomPoints fills dst with points spread uniformly over a cube of the
// given half size, each with a random color.
func RandomPoints(rng *rand.Rand, dst []metadata.Vertex, radius float32) {
	for i := range dst {
		dst[i] = metadata.Vertex{
			Position: mgl32.Vec3{
				emath.RandomInRange(rng, -radius, radius),
				emath.RandomInRange(rng, -radius, radius),
				emath.RandomInRange(rng, -radius, radius),
			},
			Normal: mgl32.Vec3{0, 1, 0},
			Color:  mgl32.Vec3{rng.Float32(), rng.Float32(), rng.Float32()},
		}
	}
}

// GeneratePointCloud fills dst with a random cloud, split in chunks that run
// on the job system. Chunk c draws from its own generator seeded with
// seed+c, so the result only depends on seed and the chunk count.
func GeneratePointCloud(jobs Runner, dst []metadata.Vertex, seed uint64, radius float32) error {
	if len(dst) == 0 {
		return nil
	}
	chunks := emath.Clamp(jobs.Workers()*4, 1, len(dst))
	size := (len(dst) + chunks - 1) / chunks

	tasks := make([]metadata.JobTask, 0, chunks)
	for c := 0; c*size < len(dst); c++ {
		start := c * size
		end := min(start+size, len(dst))
		tasks = append(tasks, metadata.JobTask{
			Name:        fmt.Sprintf("point cloud %d-%d", start, end),
			InputParams: uint64(c),
			OnStart: func(in interface{}) (interface{}, error) {
				rng := rand.New(rand.NewSource(seed + in.(uint64)))
				RandomPoints(rng, dst[start:end], radius)
				return nil, nil
			},
		})
	}
	return jobs.RunBatch(tasks)
}
