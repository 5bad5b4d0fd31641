// Package web serves the browser front end and a small JSON API around the
// summarization pipeline.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/fmueller/semisizer/internal/logging"
	"github.com/fmueller/semisizer/internal/media"
	"github.com/fmueller/semisizer/internal/pipeline"
	"github.com/fmueller/semisizer/internal/version"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Runner is the part of the pipeline the server needs.
type Runner interface {
	Run(ctx context.Context, url string) pipeline.Result
}

type Options struct {
	Runner Runner
	// RunsPerMinute and Burst bound how often a new run is admitted. Zero
	// disables the limit.
	RunsPerMinute int
	Burst         int
	Logger        *zap.Logger
}

type Server struct {
	app     *fiber.App
	runner  Runner
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Runner == nil {
		return nil, errors.New("pipeline runner is required")
	}

	s := &Server{
		runner: opts.Runner,
		logger: logging.OrNop(opts.Logger),
	}
	if opts.RunsPerMinute > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RunsPerMinute)), burst)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "semisizer",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/api/version", s.handleVersion)
	s.app.Post("/summarize", s.admit, s.handleSummarizeForm)
	s.app.Post("/api/summarize", s.admit, s.handleSummarizeAPI)
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("web UI listening", zap.String("addr", "http://"+addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) admit(c *fiber.Ctx) error {
	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warn("run rejected by rate limit", zap.String("remote", c.IP()))
		return fiber.NewError(fiber.StatusTooManyRequests, "too many summarization requests; try again in a minute")
	}
	return c.Next()
}

type page struct {
	URL      string
	Ran      bool
	Events   []pipeline.Event
	EmbedURL string
	Summary  string
	Elapsed  string
}

func (s *Server) render(c *fiber.Ctx, status int, p page) error {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	c.Type("html", "utf-8")
	return c.Status(status).Send(buf.Bytes())
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, page{})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleVersion(c *fiber.Ctx) error {
	return c.JSON(version.Get())
}

func (s *Server) handleSummarizeForm(c *fiber.Ctx) error {
	url := strings.TrimSpace(c.FormValue("url"))
	if url == "" {
		return s.render(c, fiber.StatusBadRequest, page{
			Events: []pipeline.Event{{Level: pipeline.LevelError, Message: "Enter a YouTube URL to summarize."}},
		})
	}

	res := s.runner.Run(c.UserContext(), url)
	p := page{
		URL:    url,
		Events: res.Events,
		Ran:    res.State == pipeline.StageDone,
	}
	if p.Ran {
		p.EmbedURL = EmbedURL(url)
		p.Summary = res.Summary
		p.Elapsed = FormatSeconds(res.Elapsed)
	}
	return s.render(c, fiber.StatusOK, p)
}

type summarizeRequest struct {
	URL string `json:"url"`
}

type summarizeResponse struct {
	RunID          string           `json:"run_id"`
	URL            string           `json:"url"`
	State          pipeline.Stage   `json:"state"`
	Summary        string           `json:"summary,omitempty"`
	Transcript     string           `json:"transcript,omitempty"`
	ElapsedSeconds float64          `json:"elapsed_seconds"`
	EmbedURL       string           `json:"embed_url,omitempty"`
	FailedStage    pipeline.Stage   `json:"failed_stage,omitempty"`
	Error          string           `json:"error,omitempty"`
	Events         []pipeline.Event `json:"events"`
}

func (s *Server) handleSummarizeAPI(c *fiber.Ctx) error {
	var req summarizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON")
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "`url` field is required")
	}

	res := s.runner.Run(c.UserContext(), req.URL)
	resp := summarizeResponse{
		RunID:          res.RunID,
		URL:            res.URL,
		State:          res.State,
		Summary:        res.Summary,
		Transcript:     res.Transcript,
		ElapsedSeconds: res.Elapsed.Seconds(),
		EmbedURL:       EmbedURL(res.URL),
		Events:         res.Events,
	}
	if res.Err != nil {
		resp.FailedStage = res.Err.Stage
		resp.Error = res.Err.Err.Error()
	}

	return c.Status(apiStatus(res)).JSON(resp)
}

// apiStatus maps a run to its HTTP status: 422 when the URL itself was
// rejected, 502 for any other failure downstream.
func apiStatus(res pipeline.Result) int {
	switch {
	case res.Succeeded():
		return fiber.StatusOK
	case res.Err != nil && res.Err.Stage == pipeline.StageDownloading &&
		(errors.Is(res.Err, media.ErrInvalidURL) || errors.Is(res.Err, media.ErrEmptyURL)):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusBadGateway
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}

	if strings.HasPrefix(c.Path(), "/api/") {
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
	if code == fiber.StatusTooManyRequests {
		return s.render(c, code, page{
			Events: []pipeline.Event{{Level: pipeline.LevelError, Message: err.Error()}},
		})
	}
	return c.Status(code).SendString(err.Error())
}

// FormatSeconds renders a processing time with two decimals.
func FormatSeconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.2f", d.Seconds())
}
