// Package voice provides the speech-to-text capability for the voice
// query pipeline. The production transcriber calls Groq's Whisper API
// (whisper-large-v3) with the raw audio as a multipart upload.
package voice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mnemonic-kb/mnemonic/core"
)

const (
	defaultEndpoint = "https://api.groq.com/openai/v1"
	defaultModel    = "whisper-large-v3"
	defaultTimeout  = 60 * time.Second
)

// supportedContentTypes is the fixed allow-list of audio MIME types.
var supportedContentTypes = map[string]struct{}{
	"audio/wav":   {},
	"audio/wave":  {},
	"audio/x-wav": {},
	"audio/mpeg":  {},
	"audio/mp3":   {},
	"audio/ogg":   {},
	"audio/webm":  {},
	"audio/flac":  {},
	"audio/m4a":   {},
}

// Config configures the Whisper transcriber.
type Config struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// WhisperTranscriber implements core.Transcriber over Groq's audio
// transcription API.
type WhisperTranscriber struct {
	config     Config
	httpClient *http.Client
}

// NewWhisperTranscriber creates a transcriber. The API key is required.
func NewWhisperTranscriber(config Config) (*WhisperTranscriber, error) {
	if config.APIKey == "" {
		return nil, core.NewQueryError("NewWhisperTranscriber", core.ErrInvalidInput, "Groq API key is required", false)
	}
	if config.Endpoint == "" {
		config.Endpoint = defaultEndpoint
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	return &WhisperTranscriber{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// Transcribe converts an audio blob into text. The content type must be on
// the allow-list; an empty transcript fails with a transcription error so
// unintelligible audio never silently becomes an empty query.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, req core.TranscriptionRequest) (string, error) {
	if _, ok := supportedContentTypes[req.ContentType]; !ok {
		return "", core.NewQueryError("Transcribe", core.ErrUnsupportedAudio,
			fmt.Sprintf("unsupported audio format: %s (supported: %s)", req.ContentType, supportedFormats()), false)
	}
	if len(req.Audio) == 0 {
		return "", core.NewQueryError("Transcribe", core.ErrInvalidInput, "audio payload is empty", false)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	filename := req.Filename
	if filename == "" {
		filename = "audio.wav"
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", core.NewQueryError("Transcribe", err, "failed to build multipart body", false)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return "", core.NewQueryError("Transcribe", err, "failed to build multipart body", false)
	}
	if err := writer.WriteField("model", t.config.Model); err != nil {
		return "", core.NewQueryError("Transcribe", err, "failed to build multipart body", false)
	}
	if err := writer.WriteField("response_format", "text"); err != nil {
		return "", core.NewQueryError("Transcribe", err, "failed to build multipart body", false)
	}
	if req.Language != "" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return "", core.NewQueryError("Transcribe", err, "failed to build multipart body", false)
		}
	}
	if err := writer.Close(); err != nil {
		return "", core.NewQueryError("Transcribe", err, "failed to build multipart body", false)
	}

	url := strings.TrimRight(t.config.Endpoint, "/") + "/audio/transcriptions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", core.NewQueryError("Transcribe", err, "failed to create request", false)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+t.config.APIKey)

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return "", core.NewQueryError("Transcribe", err, "transcription API call failed", true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", core.NewQueryError("Transcribe", err, "failed to read response", false)
	}

	if resp.StatusCode != http.StatusOK {
		return "", core.NewQueryError("Transcribe",
			fmt.Errorf("transcription API returned status %d: %s", resp.StatusCode, string(respBody)),
			"", isTransientStatus(resp.StatusCode))
	}

	transcript := strings.TrimSpace(string(respBody))
	if transcript == "" {
		return "", core.NewQueryError("Transcribe", core.ErrTranscription, "no speech recognized", false)
	}
	return transcript, nil
}

func supportedFormats() string {
	formats := make([]string, 0, len(supportedContentTypes))
	for ct := range supportedContentTypes {
		formats = append(formats, ct)
	}
	sort.Strings(formats)
	return strings.Join(formats, ", ")
}

func isTransientStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}
