package support

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/cucumber/godog"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// aCode128Image writes a decodable Code 128 scene.
func (testCtx *TestContext) aCode128Image(name, payload string) error {
	scene, err := testutil.NewCode128Scene(payload)
	if err != nil {
		return fmt.Errorf("failed to render %q: %w", payload, err)
	}
	return testutil.WritePNG(scene, testCtx.Path(name))
}

// aRotatedLabel writes a synthetic bar label rotated by angle degrees.
func (testCtx *TestContext) aRotatedLabel(name, payload string, angle float64) error {
	scene := testutil.EmbedRotated(testutil.BarcodeLabel(payload), angle, testutil.LargeSize)
	return testutil.WritePNG(scene, testCtx.Path(name))
}

func (testCtx *TestContext) aBlankImage(name string) error {
	return testutil.WritePNG(testutil.BlankImage(testutil.LargeSize, 255), testCtx.Path(name))
}

func (testCtx *TestContext) aTextFile(name string) error {
	return testCtx.writeFile(name, "not an image")
}

// aPDFContaining imports the named images, one per page, into a new PDF.
func (testCtx *TestContext) aPDFContaining(name, images string) error {
	var files []string
	for _, f := range strings.Split(images, ",") {
		files = append(files, testCtx.Path(strings.TrimSpace(f)))
	}
	if err := api.ImportImagesFile(files, testCtx.Path(name), nil, nil); err != nil {
		return fmt.Errorf("failed to create PDF %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) aConfigFile(name string, body *godog.DocString) error {
	return testCtx.writeFile(name, body.Content)
}

func (testCtx *TestContext) writeFile(name, content string) error {
	path := testCtx.Path(name)
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

// jsonResults decodes the last output as one result object or an array.
func (testCtx *TestContext) jsonResults() ([]pipeline.Result, error) {
	out := strings.TrimSpace(testCtx.LastOutput)
	if strings.HasPrefix(out, "[") {
		var results []pipeline.Result
		if err := json.Unmarshal([]byte(out), &results); err != nil {
			return nil, fmt.Errorf("failed to decode results: %w\n%s", err, out)
		}
		return results, nil
	}
	var res pipeline.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w\n%s", err, out)
	}
	return []pipeline.Result{res}, nil
}

func (testCtx *TestContext) theResultShouldDecode(text string) error {
	results, err := testCtx.jsonResults()
	if err != nil {
		return err
	}
	for _, res := range results {
		for _, sym := range res.Symbols {
			if sym.Text == text {
				return nil
			}
		}
	}
	return fmt.Errorf("no symbol with text %q in:\n%s", text, testCtx.LastOutput)
}

func (testCtx *TestContext) theResultShouldHaveSkewAngle(angleStr, tolStr string) error {
	want, err := strconv.ParseFloat(angleStr, 64)
	if err != nil {
		return err
	}
	tol, err := strconv.ParseFloat(tolStr, 64)
	if err != nil {
		return err
	}
	results, err := testCtx.jsonResults()
	if err != nil {
		return err
	}
	if len(results) != 1 || results[0].Skew == nil {
		return fmt.Errorf("expected one result with a skew estimate:\n%s", testCtx.LastOutput)
	}
	if got := results[0].Skew.Angle; math.Abs(got-want) > tol {
		return fmt.Errorf("skew angle %.2f not within %.2f of %.2f", got, tol, want)
	}
	return nil
}

func (testCtx *TestContext) thereShouldBeResults(n int) error {
	results, err := testCtx.jsonResults()
	if err != nil {
		return err
	}
	if len(results) != n {
		return fmt.Errorf("expected %d results, got %d", n, len(results))
	}
	return nil
}

func (testCtx *TestContext) resultShouldHaveSource(i int, suffix string) error {
	results, err := testCtx.jsonResults()
	if err != nil {
		return err
	}
	if i < 1 || i > len(results) {
		return fmt.Errorf("result %d out of range (%d results)", i, len(results))
	}
	if src := results[i-1].Source; !strings.HasSuffix(src, suffix) {
		return fmt.Errorf("result %d source %q does not end with %q", i, src, suffix)
	}
	return nil
}

// RegisterImageSteps registers fixture and result assertions for image,
// batch and PDF scenarios.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a Code 128 image "([^"]*)" with payload "([^"]*)"$`, testCtx.aCode128Image)
	sc.Step(`^a label image "([^"]*)" with payload "([^"]*)" rotated by (-?[\d.]+) degrees$`, testCtx.aRotatedLabel)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a text file "([^"]*)"$`, testCtx.aTextFile)
	sc.Step(`^a PDF "([^"]*)" containing "([^"]*)"$`, testCtx.aPDFContaining)
	sc.Step(`^a config file "([^"]*)" with:$`, testCtx.aConfigFile)

	sc.Step(`^the result should decode "([^"]*)"$`, testCtx.theResultShouldDecode)
	sc.Step(`^the result should report a skew angle of (-?[\d.]+) within ([\d.]+) degrees$`,
		testCtx.theResultShouldHaveSkewAngle)
	sc.Step(`^there should be (\d+) results$`, testCtx.thereShouldBeResults)
	sc.Step(`^result (\d+) should have source ending with "([^"]*)"$`, testCtx.resultShouldHaveSource)
}
