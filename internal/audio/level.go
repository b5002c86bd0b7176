package audio

import "math"

// StridedRMS computes a root-mean-square amplitude estimate over every
// stride-th sample of the block. Sampling a strided subset is a cheap
// perceptual loudness proxy for UI visualization; it is not suitable for
// anything that needs real signal energy.
func StridedRMS(samples []float32, stride int) float64 {
	if len(samples) == 0 {
		return 0
	}
	if stride < 1 {
		stride = 1
	}

	sum := 0.0
	count := 0
	for i := 0; i < len(samples); i += stride {
		sum += float64(samples[i]) * float64(samples[i])
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// CalculateRMS calculates the root mean square of all samples in a block.
func CalculateRMS(samples []float32) float64 {
	return StridedRMS(samples, 1)
}
