package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/MeKo-Tech/barscan/internal/version"
)

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/detect", s.corsMiddleware(s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/detect/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.detectPDFHandler)))
	mux.HandleFunc("/ws/detect", s.rateLimitMiddleware(s.detectWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// detectHandler runs the pipeline on the multipart "image" upload. The
// response format is chosen by the "format" form or query value: json
// (default), text, csv, yaml or overlay.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, header, ok := s.readUpload(w, r, "image")
	if !ok {
		observeDetection("image", errTypeInvalidRequest, 0, 0)
		return
	}
	img, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		observeDetection("image", errTypeLoad, 0, 0)
		s.writeErrorResponse(w, fmt.Sprintf("Invalid image: %v", err), errTypeLoad, http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.Process(ctx, img)
	elapsed := time.Since(start)
	res.Source = header.Filename

	if err != nil {
		status, errType := classifyError(err)
		observeDetection("image", errType, elapsed, 0)
		slog.Info("Detection failed", "file", header.Filename, "error", err, "status", status)
		writeJSON(w, status, DetectResponse{Result: res, Error: err.Error(), ErrorType: errType})
		return
	}
	observeDetection("image", outcomeOK, elapsed, len(res.Symbols))

	switch format := requestFormat(r); format {
	case "overlay":
		if !s.overlayEnabled {
			s.writeErrorResponse(w, "overlay output disabled", errTypeInvalidRequest, http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, pipeline.RenderOverlay(img, res)); err != nil {
			slog.Error("Failed to encode overlay", "error", err)
		}
	case "", pipeline.FormatJSON:
		writeJSON(w, http.StatusOK, DetectResponse{Success: true, Result: res})
	default:
		s.writeFormatted(w, []*pipeline.Result{res}, format)
	}
}

// detectPDFHandler runs the pipeline on every image embedded in the
// multipart "pdf" upload. The optional "pages" value selects pages.
func (s *Server) detectPDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, header, ok := s.readUpload(w, r, "pdf")
	if !ok {
		observeDetection("pdf", errTypeInvalidRequest, 0, 0)
		return
	}

	tmpDir, err := os.MkdirTemp("", "barscan-upload-*")
	if err != nil {
		observeDetection("pdf", errTypeProcessing, 0, 0)
		s.writeErrorResponse(w, "Failed to stage upload", errTypeProcessing, http.StatusInternalServerError)
		return
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	path := filepath.Join(tmpDir, "upload.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		observeDetection("pdf", errTypeProcessing, 0, 0)
		s.writeErrorResponse(w, "Failed to stage upload", errTypeProcessing, http.StatusInternalServerError)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessPDF(ctx, path, r.FormValue("pages"))
	elapsed := time.Since(start)
	if err != nil {
		status, outcome := http.StatusBadRequest, errTypeLoad
		if errors.Is(err, context.DeadlineExceeded) {
			status, outcome = http.StatusGatewayTimeout, errTypeTimeout
		}
		observeDetection("pdf", outcome, elapsed, 0)
		writeJSON(w, status, PDFResponse{Error: err.Error()})
		return
	}
	// Report the uploaded name rather than the staging path.
	res.Source = header.Filename
	symbols := 0
	for _, ir := range res.Flatten() {
		ir.Source = header.Filename + strings.TrimPrefix(ir.Source, path)
		symbols += len(ir.Symbols)
	}
	observeDetection("pdf", outcomeOK, elapsed, symbols)

	if format := requestFormat(r); format != "" && format != pipeline.FormatJSON {
		s.writeFormatted(w, res.Flatten(), format)
		return
	}
	writeJSON(w, http.StatusOK, PDFResponse{Success: true, Result: res})
}

// readUpload reads the multipart file field. On failure it writes the error
// response and returns ok=false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, *multipart.FileHeader, bool) {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(strings.ToLower(err.Error()), "too large") {
			s.writeErrorResponse(w, "File too large", errTypeInvalidRequest, http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", errTypeInvalidRequest, http.StatusBadRequest)
		}
		return nil, nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("No %s file provided", field), errTypeInvalidRequest, http.StatusBadRequest)
		return nil, nil, false
	}
	defer func() { _ = file.Close() }()

	uploadSizeBytes.WithLabelValues(field).Observe(float64(header.Size))
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read upload", errTypeInvalidRequest, http.StatusBadRequest)
		return nil, nil, false
	}
	return data, header, true
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

// classifyError maps a pipeline error to an HTTP status and error type.
func classifyError(err error) (int, string) {
	var loadErr *utils.ImageLoadError
	switch {
	case pipeline.IsGeometryError(err):
		return http.StatusUnprocessableEntity, errTypeNoBarcode
	case errors.As(err, &loadErr):
		return http.StatusBadRequest, errTypeLoad
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errTypeTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, errTypeTimeout
	default:
		return http.StatusInternalServerError, errTypeProcessing
	}
}

func requestFormat(r *http.Request) string {
	if f := r.FormValue("format"); f != "" {
		return strings.ToLower(f)
	}
	return strings.ToLower(r.URL.Query().Get("format"))
}

var contentTypes = map[string]string{
	pipeline.FormatText: "text/plain; charset=utf-8",
	pipeline.FormatCSV:  "text/csv",
	pipeline.FormatYAML: "application/yaml",
	"yml":               "application/yaml",
}

func (s *Server) writeFormatted(w http.ResponseWriter, results []*pipeline.Result, format string) {
	out, err := pipeline.Format(results, format)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), errTypeInvalidRequest, http.StatusBadRequest)
		return
	}
	ct, ok := contentTypes[format]
	if !ok {
		ct = "application/json"
	}
	w.Header().Set("Content-Type", ct)
	_, _ = io.WriteString(w, out)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message, errType string, statusCode int) {
	writeJSON(w, statusCode, DetectResponse{Error: message, ErrorType: errType})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
