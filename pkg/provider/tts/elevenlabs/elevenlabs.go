// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs streaming WebSocket API, collected into a single clip per call.
// It implements the tts.Provider interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/earshot-ai/earshot/pkg/provider/tts"
)

const (
	wsEndpointFmt  = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s"
	voicesEndpoint = "https://api.elevenlabs.io/v1/voices"
	defaultModel   = "eleven_flash_v2_5"

	// pcm_16000 matches Earshot's capture rate, so the spoken reply can be
	// played back without resampling.
	defaultOutputFmt = "pcm_16000"
)

var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "pcm_16000", "pcm_24000").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// Provider implements tts.Provider backed by the ElevenLabs API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// textMessage is the JSON payload sent to ElevenLabs for a text chunk. An
// empty Text acts as the end-of-input flush command.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is a message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// boiMessage is the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// Synthesize implements tts.Provider. It opens a WebSocket to ElevenLabs,
// sends the full text followed by a flush, and concatenates the returned PCM
// chunks into a single clip.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return tts.Audio{}, nil
	}
	if voice.ID == "" {
		return tts.Audio{}, errors.New("elevenlabs: voice.ID must not be empty")
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, voice.ID, p.model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// ElevenLabs requires a non-empty first text value on the handshake.
	boi := boiMessage{
		Text: " ",
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		XiAPIKey:     p.apiKey,
		OutputFormat: p.outputFormat,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	payload, _ := json.Marshal(textMessage{Text: text})
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs: send text: %w", err)
	}
	flush, _ := json.Marshal(textMessage{Text: ""})
	if err := conn.Write(ctx, websocket.MessageText, flush); err != nil {
		return tts.Audio{}, fmt.Errorf("elevenlabs: send flush: %w", err)
	}

	var pcm bytes.Buffer
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return tts.Audio{}, ctx.Err()
			}
			// The server closes the connection after the final chunk.
			break
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err == nil {
				pcm.Write(chunk)
			}
		}
		if resp.IsFinal {
			break
		}
	}

	if pcm.Len() == 0 {
		return tts.Audio{}, errors.New("elevenlabs: no audio returned")
	}
	return tts.Audio{
		PCM:        pcm.Bytes(),
		SampleRate: outputSampleRate(p.outputFormat),
		Channels:   1,
	}, nil
}

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	data, err := decodeVoices(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return data, nil
}

// decodeVoices parses an ElevenLabs /v1/voices response body.
func decodeVoices(r io.Reader) ([]tts.Voice, error) {
	var vr voicesResponse
	if err := json.NewDecoder(r).Decode(&vr); err != nil {
		return nil, err
	}
	voices := make([]tts.Voice, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		voices = append(voices, tts.Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Provider: "elevenlabs",
			Metadata: meta,
		})
	}
	return voices, nil
}

// outputSampleRate maps an ElevenLabs output format to its sample rate.
func outputSampleRate(format string) int {
	switch format {
	case "pcm_8000":
		return 8000
	case "pcm_22050":
		return 22050
	case "pcm_24000":
		return 24000
	case "pcm_44100":
		return 44100
	default:
		return 16000
	}
}
