package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/server"
	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/cucumber/godog"
)

const requestTimeout = 30 * time.Second

// startServer runs the HTTP API on an httptest listener. Synthetic labels are
// decoded by testutil.StubDecoder.
func (testCtx *TestContext) startServer(cfg server.Config) error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
	}
	pl, err := pipeline.NewBuilder().WithDecoder(testutil.StubDecoder{}).Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	if cfg.TimeoutSec == 0 {
		cfg.TimeoutSec = 30
	}
	mux := http.NewServeMux()
	server.NewServerWithPipeline(pl, cfg).SetupRoutes(mux)
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startServer(server.Config{CORSOrigin: "*", OverlayEnabled: true})
}

func (testCtx *TestContext) theServerIsRunningWithRateLimit(perMinute int) error {
	return testCtx.startServer(server.Config{
		CORSOrigin: "*",
		Limits:     server.Limits{PerMinute: perMinute},
	})
}

func (testCtx *TestContext) iSendGETRequest(path string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, testCtx.HTTPServer.URL+path, nil)
	if err != nil {
		return err
	}
	return testCtx.do(req)
}

// iUploadFile posts name as a multipart upload. The field is "pdf" for the
// PDF endpoint and "image" otherwise.
func (testCtx *TestContext) iUploadFile(name, path string) error {
	if testCtx.HTTPServer == nil {
		return errors.New("server is not running")
	}
	field := "image"
	if strings.HasPrefix(path, "/detect/pdf") {
		field = "pdf"
	}
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, filepath.Base(name))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, testCtx.HTTPServer.URL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return testCtx.do(req)
}

func (testCtx *TestContext) do(req *http.Request) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPContentType = resp.Header.Get("Content-Type")
	return nil
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, expected) {
		return fmt.Errorf("response does not contain %q: %s", expected, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldReportSuccess() error {
	var resp server.DetectResponse
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
		return fmt.Errorf("response is not a detect response: %w", err)
	}
	if !resp.Success {
		return fmt.Errorf("response reports failure: %s", resp.Error)
	}
	return nil
}

func (testCtx *TestContext) theResponseContentTypeShouldBe(expected string) error {
	if !strings.HasPrefix(testCtx.LastHTTPContentType, expected) {
		return fmt.Errorf("expected content type %q, got %q", expected, testCtx.LastHTTPContentType)
	}
	return nil
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the barcode server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the barcode server is running with a limit of (\d+) requests per minute$`,
		testCtx.theServerIsRunningWithRateLimit)

	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendGETRequest)
	sc.Step(`^I upload "([^"]*)" to "([^"]*)"$`, testCtx.iUploadFile)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should report success$`, testCtx.theResponseShouldReportSuccess)
	sc.Step(`^the response content type should be "([^"]*)"$`, testCtx.theResponseContentTypeShouldBe)
}
