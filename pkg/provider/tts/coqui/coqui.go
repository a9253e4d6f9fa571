// Package coqui provides a local Coqui TTS-backed provider that connects to
// either a Coqui XTTS v2 server or a standard Coqui TTS server via its REST
// API. It implements the tts.Provider interface.
//
// Two API modes are supported:
//
//   - APIModeStandard (default): targets the standard Coqui TTS server
//     (ghcr.io/coqui-ai/tts-cpu). Synthesis is performed via GET /api/tts with
//     URL query parameters; voice catalogue is retrieved from GET /details.
//
//   - APIModeXTTS: targets the Coqui XTTS v2 API server. Synthesis is
//     performed via POST /tts_to_audio/ with a JSON body; voice catalogue is
//     retrieved from GET /studio_speakers.
//
// Typical usage:
//
//	p, err := coqui.New("http://localhost:5002",
//	    coqui.WithLanguage("en"),
//	    coqui.WithTimeout(15*time.Second),
//	)
//	clip, err := p.Synthesize(ctx, "Hello there.", voice)
package coqui

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/earshot-ai/earshot/pkg/provider/tts"
)

var _ tts.Provider = (*Provider)(nil)

const (
	defaultLanguage        = "en"
	defaultTimeout         = 30 * time.Second
	ttsEndpoint            = "/tts_to_audio/"
	studioSpeakersEndpoint = "/studio_speakers"
	apiTTSEndpoint         = "/api/tts"
	detailsEndpoint        = "/details"
)

// APIMode selects which Coqui server API the provider will target.
type APIMode string

const (
	// APIModeXTTS targets the Coqui XTTS v2 API server (/tts_to_audio/).
	APIModeXTTS APIMode = "xtts"

	// APIModeStandard targets the standard Coqui TTS server (/api/tts).
	// This is the default mode.
	APIModeStandard APIMode = "standard"
)

// Option is a functional option for configuring a Coqui Provider.
type Option func(*Provider)

// WithLanguage sets the BCP-47 language code sent to the TTS server (e.g.,
// "en", "de"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIMode sets the server API mode. Use APIModeStandard (default) for the
// standard Coqui TTS Docker image or APIModeXTTS for the XTTS v2 API server.
func WithAPIMode(mode APIMode) Option {
	return func(p *Provider) {
		p.apiMode = mode
	}
}

// Provider implements tts.Provider backed by a locally-running Coqui TTS
// server. It is safe for concurrent use.
type Provider struct {
	serverURL  string
	language   string
	httpClient *http.Client
	apiMode    APIMode
}

// New creates a Coqui Provider targeting the TTS server at serverURL
// (e.g., "http://localhost:5002"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("coqui: serverURL must not be empty")
	}
	p := &Provider{
		serverURL: strings.TrimRight(serverURL, "/"),
		language:  defaultLanguage,
		apiMode:   APIModeStandard,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ttsRequest is the JSON body sent to POST /tts_to_audio/ (XTTS mode).
type ttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// studioSpeakersResponse is the raw map[name]any returned by GET
// /studio_speakers. Only the keys matter, so values stay raw.
type studioSpeakersResponse map[string]json.RawMessage

// detailsResponse is the JSON body returned by GET /details (standard mode).
// Speakers is nil for single-speaker models.
type detailsResponse struct {
	ModelName string   `json:"model_name"`
	Language  string   `json:"language"`
	Speakers  []string `json:"speakers"`
}

// Synthesize implements tts.Provider. It issues one HTTP request to the Coqui
// server for the full text and returns the decoded PCM. The WAV container in
// the response is parsed so the sample rate and channel count reflect whatever
// the model actually produced.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return tts.Audio{}, nil
	}
	// XTTS mode always requires a voice ID (speaker_wav). Standard mode works
	// without one for single-speaker models.
	if voice.ID == "" && p.apiMode == APIModeXTTS {
		return tts.Audio{}, errors.New("coqui: voice.ID must not be empty (required for XTTS mode)")
	}

	var (
		wav []byte
		err error
	)
	if p.apiMode == APIModeStandard {
		wav, err = p.fetchStandard(ctx, text, voice)
	} else {
		wav, err = p.fetchXTTS(ctx, text, voice)
	}
	if err != nil {
		return tts.Audio{}, err
	}

	info, err := parseWAV(wav)
	if err != nil {
		return tts.Audio{}, err
	}
	return tts.Audio{
		PCM:        wav[info.DataOffset:],
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
	}, nil
}

// fetchXTTS performs a single POST /tts_to_audio/ call and returns the raw WAV.
func (p *Provider) fetchXTTS(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	body := ttsRequest{
		Text:       text,
		SpeakerWav: voice.ID,
		Language:   p.language,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+ttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: POST %s: %w", ttsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: POST %s returned status %d", ttsEndpoint, resp.StatusCode)
	}
	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	return wav, nil
}

// fetchStandard performs a single GET /api/tts request using URL query
// parameters and returns the raw WAV.
func (p *Provider) fetchStandard(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	params := url.Values{}
	params.Set("text", text)
	if voice.ID != "" {
		params.Set("speaker_id", voice.ID)
	}
	if p.language != "" {
		params.Set("language_id", p.language)
	}

	reqURL := p.serverURL + apiTTSEndpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", apiTTSEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", apiTTSEndpoint, resp.StatusCode)
	}
	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}
	return wav, nil
}

// ListVoices retrieves the list of available voices from the Coqui server.
//
// In APIModeXTTS, it calls GET /studio_speakers and maps each entry to a
// Voice. In APIModeStandard, it calls GET /details and returns one Voice per
// speaker for multi-speaker models, or a single Voice (identified by model
// name) for single-speaker models.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	if p.apiMode == APIModeStandard {
		return p.listVoicesStandard(ctx)
	}
	return p.listVoicesXTTS(ctx)
}

func (p *Provider) listVoicesXTTS(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+studioSpeakersEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create list-voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", studioSpeakersEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", studioSpeakersEndpoint, resp.StatusCode)
	}

	var raw studioSpeakersResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("coqui: decode studio speakers: %w", err)
	}

	// Sort keys for deterministic output.
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	voices := make([]tts.Voice, 0, len(names))
	for _, name := range names {
		voices = append(voices, tts.Voice{
			ID:       name,
			Name:     name,
			Provider: "coqui",
			Metadata: map[string]string{
				"type": "studio",
			},
		})
	}
	return voices, nil
}

func (p *Provider) listVoicesStandard(ctx context.Context) ([]tts.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+detailsEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coqui: create list-voices request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coqui: GET %s: %w", detailsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: GET %s returned status %d", detailsEndpoint, resp.StatusCode)
	}

	var details detailsResponse
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("coqui: decode details response: %w", err)
	}

	if len(details.Speakers) > 0 {
		speakers := make([]string, len(details.Speakers))
		copy(speakers, details.Speakers)
		sort.Strings(speakers)

		voices := make([]tts.Voice, 0, len(speakers))
		for _, spk := range speakers {
			voices = append(voices, tts.Voice{
				ID:       spk,
				Name:     spk,
				Provider: "coqui",
				Metadata: map[string]string{
					"type":       "speaker",
					"model_name": details.ModelName,
				},
			})
		}
		return voices, nil
	}

	// Single-speaker model: one voice identified by the model name.
	name := details.ModelName
	if name == "" {
		name = "default"
	}
	return []tts.Voice{
		{
			ID:       name,
			Name:     name,
			Provider: "coqui",
			Metadata: map[string]string{
				"type":       "single-speaker",
				"model_name": name,
			},
		},
	}, nil
}

// wavInfo holds the format metadata extracted from a RIFF/WAVE header.
type wavInfo struct {
	DataOffset int
	SampleRate int
	Channels   int
}

// parseWAV scans the RIFF/WAVE container in wav and returns the data offset
// and audio format from the "fmt " sub-chunk. The fmt chunk size may vary, so
// a hardcoded 44-byte offset is not safe.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 12 {
		return wavInfo{}, errors.New("coqui: WAV response too short to be a valid RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return wavInfo{}, errors.New("coqui: WAV response missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("coqui: WAV response missing WAVE identifier")
	}

	var info wavInfo
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 && offset+8+16 <= len(wav) {
				fmtData := wav[offset+8:]
				info.Channels = int(binary.LittleEndian.Uint16(fmtData[2:4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(fmtData[4:8]))
				foundFmt = true
			}
		case "data":
			info.DataOffset = offset + 8
			if !foundFmt {
				// fmt should appear before data; fall back to XTTS defaults.
				info.SampleRate = 22050
				info.Channels = 1
			}
			return info, nil
		}

		// Chunks are word-aligned: pad by 1 if odd size.
		offset += 8 + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return wavInfo{}, errors.New("coqui: WAV response missing data chunk")
}
