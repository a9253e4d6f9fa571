package orchestrator

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/earshot-ai/earshot/internal/observe"
	"github.com/earshot-ai/earshot/pkg/provider/tts"
	ttsmock "github.com/earshot-ai/earshot/pkg/provider/tts/mock"
)

func TestSpeechDispatcherSynthesisesAndPlays(t *testing.T) {
	synth := &ttsmock.Provider{SynthesizeResult: tts.Audio{PCM: []byte{1, 2}, SampleRate: 22050, Channels: 1}}
	var played []tts.Audio
	player := PlayerFunc(func(_ context.Context, clip tts.Audio) error {
		played = append(played, clip)
		return nil
	})
	d := NewSpeechDispatcher(synth, tts.Voice{ID: "v1"}, player, nil, nil)

	if err := d.Emit(context.Background(), "Hello."); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(synth.SynthesizeCalls) != 1 || synth.SynthesizeCalls[0].Text != "Hello." {
		t.Errorf("SynthesizeCalls = %+v", synth.SynthesizeCalls)
	}
	if len(played) != 1 {
		t.Fatalf("played %d clips, want 1", len(played))
	}
}

func TestSpeechDispatcherFallsBackOnSynthesisFailure(t *testing.T) {
	synth := &ttsmock.Provider{SynthesizeErr: errors.New("voice server down")}
	player := PlayerFunc(func(_ context.Context, _ tts.Audio) error {
		t.Fatal("player ran despite synthesis failure")
		return nil
	})
	fallback := &recorder{}
	d := NewSpeechDispatcher(synth, tts.Voice{}, player, fallback, nil)

	if err := d.Emit(context.Background(), "Hello."); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(fallback.emitted) != 1 || fallback.emitted[0] != "Hello." {
		t.Errorf("fallback emitted = %v, want the reply text", fallback.emitted)
	}
}

func TestSpeechDispatcherRecordsSynthesisDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	synth := &ttsmock.Provider{}
	player := PlayerFunc(func(_ context.Context, _ tts.Audio) error { return nil })
	d := NewSpeechDispatcher(synth, tts.Voice{}, player, nil, nil)
	d.metrics = m

	if err := d.Emit(context.Background(), "Hi."); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "earshot.tts.duration" {
				continue
			}
			h, ok := met.Data.(metricdata.Histogram[float64])
			if !ok || len(h.DataPoints) == 0 {
				t.Fatal("tts duration recorded no data points")
			}
			if got := h.DataPoints[0].Count; got != 1 {
				t.Errorf("tts duration samples = %d, want 1", got)
			}
			return
		}
	}
	t.Fatal("tts duration not collected")
}
