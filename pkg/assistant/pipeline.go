package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/vision-assistant/internal/log"
	"github.com/teslashibe/vision-assistant/pkg/caption"
	"github.com/teslashibe/vision-assistant/pkg/imaging"
	"github.com/teslashibe/vision-assistant/pkg/tts"
	"github.com/teslashibe/vision-assistant/pkg/wav"
)

// Models supplies the shared model handles. *models.Registry implements it.
type Models interface {
	Captioner() (caption.Provider, error)
	Synthesizer() (tts.Provider, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore sets the replay store.
func WithStore(s *Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithImageOptions sets how photos are prepared before captioning.
func WithImageOptions(opts imaging.Options) Option {
	return func(p *Pipeline) { p.image = opts }
}

// WithMaxNewTokens limits caption length.
func WithMaxNewTokens(n int) Option {
	return func(p *Pipeline) { p.maxNewTokens = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline describes photos out loud.
type Pipeline struct {
	models       Models
	store        *Store
	observer     Observer
	image        imaging.Options
	maxNewTokens int
	logger       *slog.Logger
	newID        func() string
	now          func() time.Time
}

// New creates a pipeline over models.
func New(models Models, opts ...Option) *Pipeline {
	p := &Pipeline{
		models: models,
		image:  imaging.DefaultOptions(),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.store == nil {
		p.store = NewStore(DefaultStoreCapacity)
	}
	if p.logger == nil {
		p.logger = log.Component("assistant")
	}
	return p
}

// Recent returns up to n stored results, newest first. n <= 0 returns all.
func (p *Pipeline) Recent(n int) []*Result {
	return p.store.Recent(n)
}

// Describe captions image, speaks the caption and stores the result for replay.
func (p *Pipeline) Describe(ctx context.Context, image []byte) (*Result, error) {
	start := p.now()
	res := &Result{ID: p.newID(), CreatedAt: start}
	logger := p.logger.With("request_id", res.ID)

	p.emit(Event{Type: EventStarted, RequestID: res.ID})

	var prepared *imaging.Prepared
	err := p.stage(ctx, res.ID, StagePrepare, &res.Timings.Prepare, func() error {
		var err error
		prepared, err = imaging.Prepare(image, p.image)
		return err
	})
	if err != nil {
		return nil, p.fail(logger, res.ID, err)
	}
	res.ImageWidth, res.ImageHeight = prepared.Width, prepared.Height

	err = p.stage(ctx, res.ID, StageCaption, &res.Timings.Caption, func() error {
		captioner, err := p.models.Captioner()
		if err != nil {
			return err
		}
		c, err := captioner.Caption(ctx, &caption.Request{
			Image:        prepared.Data,
			MIMEType:     prepared.MIMEType,
			MaxNewTokens: p.maxNewTokens,
		})
		if err != nil {
			return err
		}
		res.Caption = caption.Normalize(c.Text)
		if res.Caption == "" {
			return caption.ErrEmptyCaption
		}
		res.RawCaption = c.Raw
		res.CaptionProvider = c.Provider
		res.CaptionModel = c.Model
		return nil
	})
	if err != nil {
		return nil, p.fail(logger, res.ID, err)
	}

	var audio *tts.AudioResult
	err = p.stage(ctx, res.ID, StageSynthesize, &res.Timings.Synthesize, func() error {
		synth, err := p.models.Synthesizer()
		if err != nil {
			return err
		}
		audio, err = synth.Synthesize(ctx, res.Caption)
		return err
	})
	if err != nil {
		return nil, p.fail(logger, res.ID, err)
	}

	err = p.stage(ctx, res.ID, StageEncode, &res.Timings.Encode, func() error {
		return encode(res, audio)
	})
	if err != nil {
		return nil, p.fail(logger, res.ID, err)
	}

	// Stored even if ctx ended after encoding, so the replay link resolves.
	res.Timings.Total = p.now().Sub(start)
	p.store.Put(res)
	p.emit(Event{
		Type:       EventCompleted,
		RequestID:  res.ID,
		Caption:    res.Caption,
		DurationMs: res.Timings.Total.Milliseconds(),
	})

	logger.Info("described photo",
		"caption", res.Caption,
		"provider", res.CaptionProvider,
		"mime_type", res.MIMEType,
		"audio_bytes", len(res.Audio),
		"total_ms", res.Timings.Total.Milliseconds(),
	)
	return res, nil
}

// Replay returns a stored result without recomputing anything.
func (p *Pipeline) Replay(id string) (*Result, error) {
	if r, ok := p.store.Get(id); ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// stage runs fn, timing it into d and publishing start/finish events.
// fn errors come back as *StageError.
func (p *Pipeline) stage(ctx context.Context, id string, s Stage, d *time.Duration, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: s, Err: err}
	}

	p.emit(Event{Type: EventStageStarted, RequestID: id, Stage: s})
	t := p.now()
	err := fn()
	*d = p.now().Sub(t)
	if err != nil {
		return &StageError{Stage: s, Err: err}
	}
	p.emit(Event{Type: EventStageFinished, RequestID: id, Stage: s, DurationMs: d.Milliseconds()})
	return nil
}

func (p *Pipeline) fail(logger *slog.Logger, id string, err error) error {
	var se *StageError
	stage := Stage("")
	if errors.As(err, &se) {
		stage = se.Stage
	}
	logger.Warn("describe failed", "stage", stage, "error", err)
	p.emit(Event{Type: EventFailed, RequestID: id, Stage: stage, Error: err.Error()})
	return err
}

func (p *Pipeline) emit(e Event) {
	if p.observer == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = p.now()
	}
	p.observer(e)
}

// encode fills res.Audio from a synthesis result. PCM-like audio becomes a
// 16-bit WAV; compressed audio is kept as-is.
func encode(res *Result, audio *tts.AudioResult) error {
	if audio == nil {
		return tts.ErrEmptyAudio
	}

	if audio.Format.Encoding.IsCompressed() {
		if len(audio.Audio) == 0 {
			return tts.ErrEmptyAudio
		}
		res.Audio = audio.Audio
		res.MIMEType = audio.Format.Encoding.MIMEType()
		res.SampleRate = audio.Format.SampleRate
		res.Duration = audio.Duration
		return nil
	}

	w, err := audio.Waveform()
	if err != nil {
		return err
	}
	data, err := wav.EncodeWaveform(*w)
	if err != nil {
		return err
	}
	res.Audio = data
	res.MIMEType = wav.MIMEType
	res.SampleRate = w.SampleRate
	res.Duration = w.Duration()
	return nil
}
