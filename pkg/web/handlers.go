package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/vision-assistant/pkg/assistant"
	"github.com/teslashibe/vision-assistant/pkg/hub"
	"github.com/teslashibe/vision-assistant/pkg/wav"
)

// photoField is the multipart field carrying the captured image.
const photoField = "photo"

// errNoPhoto is returned when a request carries no image.
var errNoPhoto = errors.New("web: no photo in request")

// ResultResponse is the JSON view of a description.
type ResultResponse struct {
	ID          string           `json:"id"`
	Caption     string           `json:"caption"`
	MIMEType    string           `json:"mime_type"`
	SampleRate  int              `json:"sample_rate"`
	DurationMs  int64            `json:"duration_ms"`
	AudioURL    string           `json:"audio_url"`
	AudioBase64 string           `json:"audio_base64,omitempty"`
	Provider    string           `json:"provider,omitempty"`
	Model       string           `json:"model,omitempty"`
	Timings     map[string]int64 `json:"timings_ms,omitempty"`
}

func newResultResponse(r *assistant.Result, withAudio bool) ResultResponse {
	resp := ResultResponse{
		ID:         r.ID,
		Caption:    r.Caption,
		MIMEType:   r.MIMEType,
		SampleRate: r.SampleRate,
		DurationMs: r.Duration.Milliseconds(),
		AudioURL:   audioURL(r.ID),
		Provider:   r.CaptionProvider,
		Model:      r.CaptionModel,
		Timings: map[string]int64{
			"prepare":    r.Timings.Prepare.Milliseconds(),
			"caption":    r.Timings.Caption.Milliseconds(),
			"synthesize": r.Timings.Synthesize.Milliseconds(),
			"encode":     r.Timings.Encode.Milliseconds(),
			"total":      r.Timings.Total.Milliseconds(),
		},
	}
	if withAudio {
		resp.AudioBase64 = wav.EncodeBase64(r.Audio)
	}
	return resp
}

func audioURL(id string) string {
	return "/api/results/" + id + "/audio"
}

// handleIndex renders the capture page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, pageData{})
}

// handleDescribePage runs the pipeline for a form upload and renders the
// result with autoplaying audio
func (s *Server) handleDescribePage(c *fiber.Ctx) error {
	image, err := formPhoto(c)
	if err != nil {
		return s.renderError(c, err)
	}

	res, err := s.describer.Describe(c.UserContext(), image)
	if err != nil {
		return s.renderError(c, err)
	}
	return s.render(c, fiber.StatusOK, resultPage(res))
}

// handleReplayPage plays a stored result again without recomputing it
func (s *Server) handleReplayPage(c *fiber.Ctx) error {
	res, err := s.describer.Replay(c.Params("id"))
	if err != nil {
		return s.renderError(c, err)
	}
	return s.render(c, fiber.StatusOK, resultPage(res))
}

// handleDescribeAPI accepts a multipart photo or a raw image body
func (s *Server) handleDescribeAPI(c *fiber.Ctx) error {
	image, err := requestPhoto(c)
	if err != nil {
		return err
	}

	res, err := s.describer.Describe(c.UserContext(), image)
	if err != nil {
		return err
	}
	return c.JSON(newResultResponse(res, true))
}

// handleResult returns stored result metadata
func (s *Server) handleResult(c *fiber.Ctx) error {
	res, err := s.describer.Replay(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(newResultResponse(res, false))
}

// handleResults lists stored results, newest first. ?limit=n caps the list.
func (s *Server) handleResults(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be >= 0")
	}

	recent := s.describer.Recent(limit)
	results := make([]ResultResponse, 0, len(recent))
	for _, r := range recent {
		results = append(results, newResultResponse(r, false))
	}
	return c.JSON(fiber.Map{
		"results": results,
		"count":   len(results),
	})
}

// handleAudio replays stored audio bytes
func (s *Server) handleAudio(c *fiber.Ctx) error {
	res, err := s.describer.Replay(c.Params("id"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, res.MIMEType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return c.Send(res.Audio)
}

// handleHealth reports provider health
func (s *Server) handleHealth(c *fiber.Ctx) error {
	status := "ok"
	providers := fiber.Map{}

	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.HealthTimeout)
		defer cancel()

		for name, err := range s.health.Health(ctx) {
			if err != nil {
				status = "degraded"
				providers[name] = err.Error()
				continue
			}
			providers[name] = "ok"
		}
	}

	clients := 0
	if s.events != nil {
		clients = s.events.ClientCount()
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":        status,
		"providers":     providers,
		"event_clients": clients,
	})
}

// handleEventsWS subscribes a browser to pipeline events
func (s *Server) handleEventsWS(c *websocket.Conn) {
	client := hub.NewClient(s.events, c)
	if client == nil {
		return
	}
	client.Run()
}

// formPhoto reads the photo field of a multipart form.
func formPhoto(c *fiber.Ctx) ([]byte, error) {
	fh, err := c.FormFile(photoField)
	if err != nil {
		return nil, errNoPhoto
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("web: open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("web: read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, errNoPhoto
	}
	return data, nil
}

// requestPhoto accepts either a multipart form or a raw image body.
func requestPhoto(c *fiber.Ctx) ([]byte, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return formPhoto(c)
	}
	body := c.Body()
	if len(body) == 0 {
		return nil, errNoPhoto
	}
	// fasthttp reuses the request buffer after the handler returns.
	return bytes.Clone(body), nil
}

// pageData feeds the capture page template.
type pageData struct {
	Result    *assistant.Result
	AudioURI  template.URL
	ReplayURL string
	Error     string
}

func resultPage(res *assistant.Result) pageData {
	return pageData{
		Result:    res,
		AudioURI:  template.URL(wav.DataURI(res.Audio, res.MIMEType)),
		ReplayURL: "/results/" + res.ID,
	}
}

func (s *Server) render(c *fiber.Ctx, status int, data pageData) error {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		return fmt.Errorf("web: render page: %w", err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).Send(buf.Bytes())
}

func (s *Server) renderError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	s.logError(c, status, err)
	return s.render(c, status, pageData{Error: userMessage(status)})
}
