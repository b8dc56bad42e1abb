package loaders

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/framering/engine/renderer/metadata"
)

// BitmapFrames is an animation of 1 bit frames stored back to back. Each
// row is packed most significant bit first.
type BitmapFrames struct {
	Width  int
	Height int
	data   []byte
}

// LoadBitmapFrames reads a whole animation file. Width must be a multiple
// of 8 and the file a whole number of frames.
func LoadBitmapFrames(path string, width, height int) (*BitmapFrames, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read frames %s", path)
	}
	frames, err := NewBitmapFrames(data, width, height)
	if err != nil {
		return nil, errors.Wrapf(err, "frames %s", path)
	}
	return frames, nil
}

func NewBitmapFrames(data []byte, width, height int) (*BitmapFrames, error) {
	if width <= 0 || width%8 != 0 || height <= 0 {
		return nil, errors.Newf("invalid frame size %dx%d", width, height)
	}
	b := &BitmapFrames{Width: width, Height: height, data: data}
	if len(data) == 0 || len(data)%b.FrameSize() != 0 {
		return nil, errors.Newf("%d bytes is not a whole number of %d byte frames", len(data), b.FrameSize())
	}
	return b, nil
}

// FrameSize is the number of bytes of one frame.
func (b *BitmapFrames) FrameSize() int {
	return b.Width * b.Height / 8
}

func (b *BitmapFrames) Count() int {
	return len(b.data) / b.FrameSize()
}

// FrameAt returns the frame shown after elapsed at fps frames per second.
// The animation loops.
func (b *BitmapFrames) FrameAt(elapsed time.Duration, fps float64) int {
	if elapsed < 0 || fps <= 0 {
		return 0
	}
	return int(elapsed.Seconds()*fps) % b.Count()
}

// Pixel reports whether pixel (x, y) of frame i is set.
func (b *BitmapFrames) Pixel(i, x, y int) bool {
	frame := b.data[i*b.FrameSize():]
	idx := (b.Width*y)/8 + x/8
	bit := 7 - x%8
	return frame[idx]&(1<<bit) != 0
}

// FramePoints places one point per set pixel of frame i on the XY plane,
// the frame spanning scale units horizontally and centered on the origin.
// Points beyond the set pixels collapse onto the origin in black. It
// returns the number of set pixels written.
func (b *BitmapFrames) FramePoints(i int, dst []metadata.Vertex, scale float32) int {
	unit := scale / float32(b.Width)
	white := mgl32.Vec3{1, 1, 1}
	n := 0
	for y := 0; y < b.Height && n < len(dst); y++ {
		for x := 0; x < b.Width && n < len(dst); x++ {
			if !b.Pixel(i, x, y) {
				continue
			}
			dst[n] = metadata.Vertex{
				Position: mgl32.Vec3{
					(float32(x) - float32(b.Width)/2) * unit,
					(float32(b.Height)/2 - float32(y)) * unit,
					0,
				},
				Normal: mgl32.Vec3{0, 0, 1},
				Color:  white,
			}
			n++
		}
	}
	for j := n; j < len(dst); j++ {
		dst[j] = metadata.Vertex{}
	}
	return n
}
