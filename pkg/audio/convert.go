package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// FormatConverter normalizes AudioFrames to a target format, downmixing and
// resampling as needed. The first format mismatch and the first corrupt frame
// each log one warning. Create one per stream; not for shared use across
// goroutines.
type FormatConverter struct {
	Target         Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert returns the frame in the target format. A frame already in the
// target format passes through untouched. Downmix happens before resampling
// so stereo input is never resampled twice.
func (c *FormatConverter) Convert(frame AudioFrame) AudioFrame {
	// An odd byte count cannot be int16 PCM; drop the payload.
	if len(frame.Data)%2 != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio format converter: odd byte count in PCM data, dropping frame",
				"bytes", len(frame.Data),
				"sampleRate", frame.SampleRate,
				"channels", frame.Channels,
			)
		})
		return AudioFrame{
			SampleRate: c.Target.SampleRate,
			Channels:   c.Target.Channels,
			Timestamp:  frame.Timestamp,
		}
	}

	if frame.SampleRate == c.Target.SampleRate && frame.Channels == c.Target.Channels {
		return frame
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", formatString(frame.SampleRate, frame.Channels),
			"to", formatString(c.Target.SampleRate, c.Target.Channels),
		)
	})

	pcm := frame.Data
	rate, channels := frame.SampleRate, frame.Channels

	if channels == 2 && c.Target.Channels == 1 {
		pcm = StereoToMono(pcm)
		channels = 1
	}
	if rate != c.Target.SampleRate {
		pcm = ResampleMono16(pcm, rate, c.Target.SampleRate)
		rate = c.Target.SampleRate
	}

	return AudioFrame{
		Data:       pcm,
		SampleRate: rate,
		Channels:   channels,
		Timestamp:  frame.Timestamp,
	}
}

// ConvertStream wraps an input channel with a conversion goroutine. The
// returned channel carries cap(in) buffering and closes when in closes.
// Frames whose payload was dropped as corrupt are not forwarded.
func ConvertStream(in <-chan AudioFrame, target Format) <-chan AudioFrame {
	out := make(chan AudioFrame, cap(in))
	go func() {
		defer close(out)
		conv := FormatConverter{Target: target}
		for frame := range in {
			converted := conv.Convert(frame)
			if len(converted.Data) == 0 {
				continue
			}
			out <- converted
		}
	}()
	return out
}

// sampleAt reads the i-th little-endian int16 sample from pcm.
func sampleAt(pcm []byte, i int) int16 {
	return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
}

// putSample writes s as the i-th little-endian int16 sample of pcm.
func putSample(pcm []byte, i int, s int16) {
	pcm[i*2] = byte(s)
	pcm[i*2+1] = byte(s >> 8)
}

// StereoToMono averages the left and right channel of each stereo frame.
// The average of two int16 values cannot overflow int16, so the int32
// intermediate needs no clamp.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sampleAt(pcm, i*2))
		r := int32(sampleAt(pcm, i*2+1))
		putSample(out, i, int16((l+r)/2))
	}
	return out
}

// ResampleMono16 converts 16-bit little-endian mono PCM from srcRate to
// dstRate by linear interpolation. Equal rates, invalid rates, or sub-sample
// input return the input unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := sampleAt(pcm, srcIdx)
		s1 := s0
		if srcIdx+1 < srcSamples {
			s1 = sampleAt(pcm, srcIdx+1)
		}
		putSample(out, i, int16(float64(s0)*(1-frac)+float64(s1)*frac))
	}
	return out
}

// formatString renders a format for log output, e.g. "16000Hz mono".
func formatString(rate, channels int) string {
	switch {
	case channels == 2:
		return fmt.Sprintf("%dHz stereo", rate)
	case channels > 2:
		return fmt.Sprintf("%dHz %dch", rate, channels)
	default:
		return fmt.Sprintf("%dHz mono", rate)
	}
}
