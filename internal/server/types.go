package server

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline       *pipeline.Pipeline
	corsOrigin     string
	maxUploadMB    int64
	timeout        time.Duration
	overlayEnabled bool
	rateLimiter    *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigin     string
	MaxUploadMB    int64
	TimeoutSec     int
	PipelineConfig pipeline.Config
	OverlayEnabled bool
	// Limits enables per-client rate limiting when any field is non-zero.
	Limits Limits
}

// Addr returns the listen address.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// DetectResponse wraps a pipeline result. Result is set on geometric
// failures too, carrying the stages that completed.
type DetectResponse struct {
	Success   bool             `json:"success"`
	Result    *pipeline.Result `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorType string           `json:"error_type,omitempty"`
}

// PDFResponse wraps the results of every image embedded in a PDF.
type PDFResponse struct {
	Success bool                `json:"success"`
	Result  *pipeline.PDFResult `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// Error types reported in responses.
const (
	errTypeInvalidRequest = "invalid_request"
	errTypeLoad           = "load_error"
	errTypeNoBarcode      = "no_barcode"
	errTypeTimeout        = "timeout"
	errTypeProcessing     = "processing_error"
)

// NewServer builds the pipeline from config and creates a server.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().WithConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, err
	}
	return NewServerWithPipeline(pl, config), nil
}

// NewServerWithPipeline creates a server around an existing pipeline.
func NewServerWithPipeline(pl *pipeline.Pipeline, config Config) *Server {
	s := &Server{
		pipeline:       pl,
		corsOrigin:     config.CORSOrigin,
		maxUploadMB:    config.MaxUploadMB,
		timeout:        time.Duration(config.TimeoutSec) * time.Second,
		overlayEnabled: config.OverlayEnabled,
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 20
	}
	if !config.Limits.IsZero() {
		s.rateLimiter = NewRateLimiter(config.Limits)
	}
	return s
}

func (s *Server) maxUploadBytes() int64 { return s.maxUploadMB * 1024 * 1024 }
