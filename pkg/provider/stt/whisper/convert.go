package whisper

import "encoding/binary"

// whisper.cpp consumes normalised float32 samples, while the capture pipeline
// hands utterances over as 16-bit little-endian PCM. These helpers bridge the
// two; down-mixing happens here too so the model always sees mono input.

// pcmToFloat32 converts 16-bit signed little-endian PCM to float32 samples in
// [-1.0, 1.0]. A trailing odd byte is silently ignored.
func pcmToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// pcmToFloat32Mono down-mixes interleaved multi-channel 16-bit PCM to mono
// float32 by averaging the channels of each frame. channels <= 1 delegates to
// [pcmToFloat32].
func pcmToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels <= 1 {
		return pcmToFloat32(pcm)
	}
	samplesPerChannel := len(pcm) / (2 * channels)
	mono := make([]float32, samplesPerChannel)
	for i := range samplesPerChannel {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float32(sample) / 32768.0
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}
