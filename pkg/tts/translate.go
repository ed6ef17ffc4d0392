package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teslashibe/vision-assistant/internal/httpc"
)

const (
	providerTranslate = "translate"
	translateTTSURL   = "https://translate.google.com/translate_tts"

	// translateMaxChars is the longest text the endpoint accepts per request.
	translateMaxChars = 100

	// translateKbps is the bitrate of the returned MP3 stream.
	translateKbps = 32
)

// Translate speaks text with the Google Translate voice. It needs no key and
// returns MP3, which is served to the browser without re-encoding.
type Translate struct {
	config *Config
	client *http.Client
	logger *slog.Logger
}

// NewTranslate creates a Google Translate TTS provider.
func NewTranslate(opts ...Option) (*Translate, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = translateTTSURL
	cfg.Apply(opts...)

	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en"
	}

	return &Translate{
		config: cfg,
		client: httpc.NewClient(cfg.Timeout),
		logger: cfg.Logger.With("component", "tts.translate"),
	}, nil
}

// Synthesize fetches MP3 audio for text, one request per 100-character chunk.
// MP3 frames concatenate, so the chunks are joined byte-wise.
func (t *Translate) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerTranslate, ErrEmptyText)
	}
	start := time.Now()

	chunks := splitText(text, translateMaxChars)
	var audio bytes.Buffer
	for i, chunk := range chunks {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.chunkURL(chunk, i, len(chunks)), nil)
		if err != nil {
			return nil, WrapError(providerTranslate, fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := doWithRetry(ctx, t.client, req, nil, t.config, t.logger, providerTranslate, t.parseError)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			err := t.parseError(resp)
			resp.Body.Close()
			return nil, err
		}
		_, err = io.Copy(&audio, resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, WrapError(providerTranslate, fmt.Errorf("read response: %w", err))
		}
	}
	if audio.Len() == 0 {
		return nil, WrapError(providerTranslate, ErrEmptyAudio)
	}

	latency := time.Since(start).Milliseconds()
	t.logger.Debug("synthesized audio",
		"chars", len(text),
		"chunks", len(chunks),
		"bytes", audio.Len(),
		"latency_ms", latency,
	)

	return &AudioResult{
		Audio:     audio.Bytes(),
		Format:    AudioFormat{Encoding: EncodingMP3, SampleRate: 24000, Channels: 1},
		Duration:  mp3Duration(audio.Len(), translateKbps),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Health requests a one-word utterance.
func (t *Translate) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.chunkURL("ok", 0, 1), nil)
	if err != nil {
		return WrapError(providerTranslate, err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return WrapError(providerTranslate, fmt.Errorf("health check: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return t.parseError(resp)
	}
	return nil
}

// Close releases resources held by the provider.
func (t *Translate) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *Translate) chunkURL(chunk string, idx, total int) string {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", chunk)
	q.Set("tl", t.config.LanguageCode)
	q.Set("client", "tw-ob")
	q.Set("total", strconv.Itoa(total))
	q.Set("idx", strconv.Itoa(idx))
	q.Set("textlen", strconv.Itoa(utf8.RuneCountInString(chunk)))
	return t.config.BaseURL + "?" + q.Encode()
}

func (t *Translate) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
		Provider:   providerTranslate,
	}
}

// splitText breaks text into chunks of at most max runes, preferring
// word boundaries. Words longer than max are split mid-word.
func splitText(text string, max int) []string {
	var chunks []string
	var current []rune

	flush := func() {
		if s := strings.TrimSpace(string(current)); s != "" {
			chunks = append(chunks, s)
		}
		current = current[:0]
	}

	for _, word := range strings.Fields(text) {
		w := []rune(word)
		for len(w) > max {
			flush()
			chunks = append(chunks, string(w[:max]))
			w = w[max:]
		}
		extra := len(w)
		if len(current) > 0 {
			extra++
		}
		if len(current)+extra > max {
			flush()
		}
		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, w...)
	}
	flush()
	return chunks
}

// Verify Translate implements Provider at compile time.
var _ Provider = (*Translate)(nil)
