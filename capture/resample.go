package capture

import (
	"fmt"
	"math"
)

// Resampler converts interleaved float samples between sample rates using
// linear interpolation. It is a streaming converter: the fractional read
// position and the final frame of each chunk carry across Process calls,
// so chunked input produces continuous output with no discontinuity at
// chunk boundaries. One instance per engine, never per buffer.
type Resampler struct {
	inRate   int
	outRate  int
	channels int

	step float64 // input frames consumed per output frame

	// Output frame n reads input position n*step. inDone counts input
	// frames consumed by previous chunks, so the position relative to
	// the current chunk is outDone*step - inDone; it can sit in (-1, 0)
	// right after a chunk boundary, in which case last holds the frame
	// to interpolate from.
	inDone  int64
	outDone int64
	last    []float32
	primed  bool
}

// NewResampler creates a streaming resampler for interleaved input with
// the given channel count.
func NewResampler(inRate, outRate, channels int) (*Resampler, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates: in=%d out=%d", inRate, outRate)
	}
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}
	return &Resampler{
		inRate:   inRate,
		outRate:  outRate,
		channels: channels,
		step:     float64(inRate) / float64(outRate),
		last:     make([]float32, channels),
	}, nil
}

// ExpectedFrames is the upper bound ceil(frames * outRate/inRate) on the
// output of one Process call. The actual count Process reports may be
// lower; callers must size delivery from the returned slice, never from
// this bound.
func (r *Resampler) ExpectedFrames(frames int) int {
	return int(math.Ceil(float64(frames) * float64(r.outRate) / float64(r.inRate)))
}

// Process converts one chunk of interleaved samples. The returned slice
// is freshly allocated and owned by the caller.
func (r *Resampler) Process(in []float32) []float32 {
	frames := len(in) / r.channels
	if frames == 0 {
		return nil
	}

	out := make([]float32, 0, r.ExpectedFrames(frames)*r.channels)
	base := float64(r.inDone)
	for {
		pos := float64(r.outDone)*r.step - base
		if pos > float64(frames-1) {
			// Needs the next chunk's first frame; defer.
			break
		}
		idx := int(math.Floor(pos))
		frac := float32(pos - float64(idx))
		for ch := 0; ch < r.channels; ch++ {
			s0 := r.sampleAt(in, idx, ch, frames)
			s1 := r.sampleAt(in, idx+1, ch, frames)
			out = append(out, s0+(s1-s0)*frac)
		}
		r.outDone++
	}

	// Carry the final frame into the next chunk.
	r.inDone += int64(frames)
	copy(r.last, in[(frames-1)*r.channels:])
	r.primed = true
	return out
}

// sampleAt reads a frame's channel sample, reaching into the previous
// chunk's final frame for idx == -1 and clamping at the upper boundary.
func (r *Resampler) sampleAt(in []float32, idx, ch, frames int) float32 {
	if idx < 0 {
		if r.primed {
			return r.last[ch]
		}
		return in[ch]
	}
	if idx >= frames {
		idx = frames - 1
	}
	return in[idx*r.channels+ch]
}

// Reset clears the carried position and history, for use across stream
// discontinuities.
func (r *Resampler) Reset() {
	r.inDone = 0
	r.outDone = 0
	r.primed = false
	for i := range r.last {
		r.last[i] = 0
	}
}
