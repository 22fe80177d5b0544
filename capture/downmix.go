package capture

// downmixMono averages all native channels of each frame into a single
// mono sample. Arithmetic mean, not a perceptual mix.
func downmixMono(in []float32, frames, channels int) []float32 {
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			sum += in[base+ch]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// convertChannels maps native interleaved samples to the requested output
// channel count. Matching counts pass through a copy; mono output is the
// arithmetic mean of all native channels; stereo output from a mono
// device duplicates the channel, and stereo from >2 native channels folds
// to mono first.
func convertChannels(in []float32, frames, native, want int) []float32 {
	switch {
	case native == want:
		out := make([]float32, frames*want)
		copy(out, in[:frames*native])
		return out
	case want == 1:
		return downmixMono(in, frames, native)
	default: // want == 2
		var mono []float32
		if native == 1 {
			mono = in[:frames]
		} else {
			mono = downmixMono(in, frames, native)
		}
		out := make([]float32, frames*2)
		for i := 0; i < frames; i++ {
			out[2*i] = mono[i]
			out[2*i+1] = mono[i]
		}
		return out
	}
}
