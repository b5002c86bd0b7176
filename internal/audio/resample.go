package audio

// Resample converts PCM samples between sample rates using nearest-sample
// decimation. This is a basic implementation - for production, consider using
// a library with better quality algorithms (e.g., sinc interpolation). The
// trade-off is intentional: microphone audio headed for a speech model does
// not need fidelity-preserving resampling, and decimation is allocation-cheap.
//
// When fromRate == toRate the input slice is returned unchanged.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate {
		return samples
	}
	if fromRate <= 0 || toRate <= 0 {
		return nil
	}

	ratio := float64(fromRate) / float64(toRate)
	outputLength := int(float64(len(samples)) / ratio)
	output := make([]float32, outputLength)

	for i := 0; i < outputLength; i++ {
		offset := int(float64(i) * ratio)
		if offset >= len(samples) {
			offset = len(samples) - 1
		}
		output[i] = samples[offset]
	}

	return output
}
