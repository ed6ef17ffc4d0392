package tts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/vision-assistant/pkg/tts"
	"github.com/teslashibe/vision-assistant/pkg/wav"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns waveform", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Samples) != 11*320 {
			t.Errorf("expected %d samples, got %d", 11*320, len(result.Samples))
		}
		if result.CharCount != 11 {
			t.Errorf("expected 11 chars, got %d", result.CharCount)
		}
		if result.Format.SampleRate != 16000 {
			t.Errorf("expected 16000 sample rate, got %d", result.Format.SampleRate)
		}
	})

	t.Run("Health returns nil", func(t *testing.T) {
		if err := mock.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		if len(mock.Calls()) != 2 {
			t.Errorf("expected 2 calls, got %d", len(mock.Calls()))
		}
		if mock.CallCount("Synthesize") != 1 {
			t.Errorf("expected 1 Synthesize call, got %d", mock.CallCount("Synthesize"))
		}
		if last := mock.LastCall(); last == nil || last.Method != "Health" {
			t.Errorf("expected last call Health, got %+v", last)
		}
	})

	t.Run("Reset clears calls", func(t *testing.T) {
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	mock := tts.WithError(testErr)
	ctx := context.Background()

	if _, err := mock.Synthesize(ctx, "Hello"); !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
	if err := mock.Health(ctx); err == nil {
		t.Error("expected health error")
	}
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.WithLatency(tts.NewMock(), 50*time.Millisecond)

	t.Run("Synthesize has latency", func(t *testing.T) {
		start := time.Now()
		_, err := mock.Synthesize(context.Background(), "Hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("expected at least 50ms latency, got %v", elapsed)
		}
	})

	t.Run("Context cancellation works", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if _, err := mock.Synthesize(ctx, "Hello"); err == nil {
			t.Error("expected context deadline error")
		}
	})
}

func TestAudioResultWaveform(t *testing.T) {
	t.Run("float32 is copied", func(t *testing.T) {
		r := &tts.AudioResult{
			Samples: []float32{0, 0.5, -0.5},
			Format:  tts.AudioFormat{Encoding: tts.EncodingFloat32, SampleRate: 16000},
		}
		w, err := r.Waveform()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		w.Samples[0] = 1
		if r.Samples[0] != 0 {
			t.Error("waveform must not alias result samples")
		}
		if w.SampleRate != 16000 {
			t.Errorf("expected 16000, got %d", w.SampleRate)
		}
	})

	t.Run("pcm16 is decoded", func(t *testing.T) {
		r := &tts.AudioResult{
			Audio:  []byte{0xff, 0x7f, 0x01, 0x80},
			Format: tts.AudioFormat{Encoding: tts.EncodingPCM16, SampleRate: 24000},
		}
		w, err := r.Waveform()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(w.Samples) != 2 || w.Samples[0] != 1 || w.Samples[1] != -1 {
			t.Errorf("unexpected samples %v", w.Samples)
		}
		if w.SampleRate != 24000 {
			t.Errorf("expected 24000, got %d", w.SampleRate)
		}
	})

	t.Run("wav is decoded", func(t *testing.T) {
		data, err := wav.Encode([]float32{1, -1, 0}, 22050)
		if err != nil {
			t.Fatal(err)
		}
		r := &tts.AudioResult{Audio: data, Format: tts.AudioFormat{Encoding: tts.EncodingWAV}}
		w, err := r.Waveform()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(w.Samples) != 3 || w.SampleRate != 22050 {
			t.Errorf("unexpected waveform %+v", w)
		}
	})

	t.Run("mp3 is compressed", func(t *testing.T) {
		r := &tts.AudioResult{Audio: []byte{0xff, 0xfb}, Format: tts.AudioFormat{Encoding: tts.EncodingMP3}}
		if _, err := r.Waveform(); !errors.Is(err, tts.ErrCompressed) {
			t.Errorf("expected ErrCompressed, got %v", err)
		}
	})

	t.Run("unknown encoding", func(t *testing.T) {
		r := &tts.AudioResult{Format: tts.AudioFormat{Encoding: "opus"}}
		if _, err := r.Waveform(); !errors.Is(err, tts.ErrUnsupportedEncoding) {
			t.Errorf("expected ErrUnsupportedEncoding, got %v", err)
		}
	})

	t.Run("invalid rate", func(t *testing.T) {
		r := &tts.AudioResult{Samples: []float32{0}, Format: tts.AudioFormat{Encoding: tts.EncodingFloat32}}
		if _, err := r.Waveform(); !errors.Is(err, wav.ErrInvalidSampleRate) {
			t.Errorf("expected ErrInvalidSampleRate, got %v", err)
		}
	})
}

func TestEncodingMIMEType(t *testing.T) {
	tests := []struct {
		encoding tts.Encoding
		mime     string
	}{
		{tts.EncodingFloat32, "audio/wav"},
		{tts.EncodingPCM16, "audio/wav"},
		{tts.EncodingWAV, "audio/wav"},
		{tts.EncodingMP3, "audio/mpeg"},
	}
	for _, tt := range tests {
		t.Run(string(tt.encoding), func(t *testing.T) {
			if got := tt.encoding.MIMEType(); got != tt.mime {
				t.Errorf("expected %s, got %s", tt.mime, got)
			}
		})
	}
	if !tts.EncodingMP3.IsCompressed() || tts.EncodingWAV.IsCompressed() {
		t.Error("only mp3 is compressed")
	}
}

func TestDefaultVoiceSettings(t *testing.T) {
	settings := tts.DefaultVoiceSettings()

	if settings.Stability != 0.6 {
		t.Errorf("expected stability 0.6, got %f", settings.Stability)
	}
	if settings.SimilarityBoost != 0.75 {
		t.Errorf("expected similarity 0.75, got %f", settings.SimilarityBoost)
	}
	if !settings.SpeakerBoost {
		t.Error("expected speaker boost true")
	}
	if settings.Speed != 0 {
		t.Errorf("expected provider default speed, got %f", settings.Speed)
	}
}

func TestFunctionalOptions(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Apply(
		tts.WithVoice("test-voice"),
		tts.WithModel("test-model"),
		tts.WithTimeout(5*time.Second),
		tts.WithOutputFormat("mp3"),
		tts.WithSampleRate(22050),
		tts.WithLanguage("en-GB"),
	)

	if cfg.VoiceID != "test-voice" {
		t.Errorf("expected voice test-voice, got %s", cfg.VoiceID)
	}
	if cfg.ModelID != "test-model" {
		t.Errorf("expected model test-model, got %s", cfg.ModelID)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Timeout)
	}
	if cfg.OutputFormat != "mp3" {
		t.Errorf("expected mp3 format, got %s", cfg.OutputFormat)
	}
	if cfg.SampleRate != 22050 || cfg.LanguageCode != "en-GB" {
		t.Errorf("unexpected rate/language %d/%s", cfg.SampleRate, cfg.LanguageCode)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("Validate requires API key", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		if err := cfg.Validate(); err != tts.ErrNoAPIKey {
			t.Errorf("expected ErrNoAPIKey, got %v", err)
		}
	})

	t.Run("ValidateWithVoice requires voice", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		if err := cfg.ValidateWithVoice(); err != tts.ErrNoVoiceID {
			t.Errorf("expected ErrNoVoiceID, got %v", err)
		}
	})

	t.Run("ValidateWithVoice passes with both", func(t *testing.T) {
		cfg := tts.DefaultConfig()
		cfg.APIKey = "test-key"
		cfg.VoiceID = "test-voice"
		if err := cfg.ValidateWithVoice(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestAPIError(t *testing.T) {
	t.Run("IsRateLimited", func(t *testing.T) {
		err := &tts.APIError{StatusCode: 429, Message: "rate limited"}
		if !err.IsRateLimited() || err.IsUnauthorized() {
			t.Error("expected rate limited only")
		}
	})

	t.Run("IsServerError", func(t *testing.T) {
		for _, code := range []int{500, 502, 503, 504} {
			err := &tts.APIError{StatusCode: code}
			if !err.IsServerError() || !err.IsRetryable() {
				t.Errorf("expected retryable server error for %d", code)
			}
		}
	})

	t.Run("Error message format", func(t *testing.T) {
		err := &tts.APIError{
			StatusCode: 400,
			Message:    "bad request",
			Code:       "invalid_input",
			Provider:   "elevenlabs",
		}
		if msg := err.Error(); msg != "tts [elevenlabs]: API error 400 (invalid_input): bad request" {
			t.Errorf("unexpected error message: %s", msg)
		}
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("NewChain requires providers", func(t *testing.T) {
		if _, err := tts.NewChain(nil); err != tts.ErrProviderUnavailable {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("First provider succeeds", func(t *testing.T) {
		mock1 := tts.NewMock()
		mock2 := tts.NewMock()

		chain, err := tts.NewChain(nil, tts.Link{Name: "first", Provider: mock1}, tts.Link{Name: "second", Provider: mock2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer chain.Close()

		if _, err := chain.Synthesize(ctx, "Hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mock1.CallCount("Synthesize") != 1 {
			t.Error("expected first provider to be called")
		}
		if mock2.CallCount("Synthesize") != 0 {
			t.Error("expected second provider not to be called")
		}
	})

	t.Run("Fallback on failure", func(t *testing.T) {
		chain, _ := tts.NewChain(nil,
			tts.Link{Name: "broken", Provider: tts.WithError(errors.New("provider 1 failed"))},
			tts.Link{Name: "mock", Provider: tts.NewMock()})
		result, err := chain.Synthesize(ctx, "Hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result == nil {
			t.Error("expected result from fallback provider")
		}
	})

	t.Run("All providers fail", func(t *testing.T) {
		fail2 := errors.New("fail 2")
		chain, _ := tts.NewChain(nil,
			tts.Link{Name: "a", Provider: tts.WithError(errors.New("fail 1"))},
			tts.Link{Name: "b", Provider: tts.WithError(fail2)})

		_, err := chain.Synthesize(ctx, "Hello")
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) || len(chainErr.Errors) != 2 {
			t.Fatalf("expected ChainError with 2 errors, got %v", err)
		}
		if !errors.Is(err, fail2) {
			t.Error("expected chain error to unwrap provider errors")
		}

		var pe *tts.ProviderError
		if !errors.As(chainErr.Errors[1], &pe) || pe.Provider != "b" {
			t.Errorf("expected failure attributed to link b, got %v", chainErr.Errors[1])
		}
	})

	t.Run("Provider errors keep their own attribution", func(t *testing.T) {
		apiErr := &tts.APIError{StatusCode: 500, Message: "boom", Provider: "elevenlabs"}
		chain, _ := tts.NewChain(nil, tts.Link{Name: "voice", Provider: tts.WithError(apiErr)})

		_, err := chain.Synthesize(ctx, "Hello")
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) {
			t.Fatalf("expected ChainError, got %v", err)
		}
		if chainErr.Errors[0] != error(apiErr) {
			t.Errorf("expected API error unchanged, got %v", chainErr.Errors[0])
		}
	})

	t.Run("Health checks all providers", func(t *testing.T) {
		chain, _ := tts.NewChain(nil,
			tts.Link{Name: "down", Provider: tts.WithError(errors.New("down"))},
			tts.Link{Name: "mock", Provider: tts.NewMock()})
		if err := chain.Health(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		down, _ := tts.NewChain(nil, tts.Link{Name: "down", Provider: tts.WithError(errors.New("down"))})
		if err := down.Health(ctx); err == nil {
			t.Error("expected unhealthy chain")
		}
	})
}

func TestProviderError(t *testing.T) {
	inner := errors.New("connection failed")
	err := tts.WrapError("elevenlabs", inner)

	if err.Error() != "tts [elevenlabs]: connection failed" {
		t.Errorf("unexpected error message: %s", err.Error())
	}

	var pe *tts.ProviderError
	if !errors.As(err, &pe) || pe.Provider != "elevenlabs" {
		t.Error("expected ProviderError for elevenlabs")
	}
	if !errors.Is(err, inner) {
		t.Error("expected unwrap to inner error")
	}
}
