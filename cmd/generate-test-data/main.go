package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// fixture records what the pipeline should report for a generated image.
type fixture struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	InputFile   string  `json:"input_file"`
	Payload     string  `json:"payload,omitempty"`
	SkewAngle   float64 `json:"skew_angle"`
	NoBarcode   bool    `json:"no_barcode,omitempty"`
}

func main() {
	// Set up structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		outDir           = flag.String("out", "testdata", "Output directory")
		generateImages   = flag.Bool("images", true, "Generate synthetic barcode scenes")
		generateFixtures = flag.Bool("fixtures", true, "Generate expected-result fixtures")
		generatePDF      = flag.Bool("pdf", true, "Generate a PDF embedding the Code 128 scenes")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic barcode scenes for barscan testing.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                     # Generate everything into ./testdata\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -pdf=false          # Skip the PDF\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -out /tmp/scenes    # Write elsewhere\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	fixtures := sceneFixtures()
	if *generateImages {
		if err := generateScenes(*outDir, fixtures); err != nil {
			slog.Error("Failed to generate scenes", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated synthetic scenes", "count", len(fixtures), "dir", *outDir)
	}
	if *generatePDF {
		path, err := generateDocument(*outDir, fixtures)
		if err != nil {
			slog.Error("Failed to generate PDF", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated PDF", "path", path)
	}
	if *generateFixtures {
		if err := saveFixtures(filepath.Join(*outDir, "fixtures"), fixtures); err != nil {
			slog.Error("Failed to generate fixtures", "error", err)
			os.Exit(1)
		}
		slog.Info("Generated fixtures", "count", len(fixtures))
	}

	slog.Info("Test data generation completed")
}

// sceneFixtures lists the generated scenes. Labels rotated
// counter-clockwise by θ report a correction angle of -θ.
func sceneFixtures() []fixture {
	var out []fixture
	for _, angle := range []float64{0, 10, 15, 30, -20, -40} {
		out = append(out, fixture{
			Name:        fmt.Sprintf("label_rot_%+.0f", angle),
			Description: fmt.Sprintf("Synthetic bar label rotated by %.0f degrees", angle),
			InputFile:   fmt.Sprintf("images/rotated/label_rot_%+.0f.png", angle),
			Payload:     "BC",
			SkewAngle:   -angle,
		})
	}
	for _, payload := range []string{"BARSCAN-1", "0123456789", "HELLO-WORLD"} {
		out = append(out, fixture{
			Name:        "code128_" + payload,
			Description: "Code 128 symbol on an upright label",
			InputFile:   "images/code128/" + payload + ".png",
			Payload:     payload,
		})
	}
	out = append(out, fixture{
		Name:        "blank",
		Description: "Uniform white page without any barcode",
		InputFile:   "images/blank/blank.png",
		NoBarcode:   true,
	})
	return out
}

func generateScenes(root string, fixtures []fixture) error {
	for _, f := range fixtures {
		path := filepath.Join(root, f.InputFile)
		var err error
		switch {
		case f.NoBarcode:
			err = testutil.WritePNG(testutil.BlankImage(testutil.LargeSize, 255), path)
		case filepath.Base(filepath.Dir(f.InputFile)) == "code128":
			scene, renderErr := testutil.NewCode128Scene(f.Payload)
			if renderErr != nil {
				return fmt.Errorf("failed to render %s: %w", f.Name, renderErr)
			}
			err = testutil.WritePNG(scene, path)
		default:
			err = testutil.WritePNG(testutil.EmbedRotated(testutil.BarcodeLabel(f.Payload), -f.SkewAngle, testutil.LargeSize), path)
		}
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

// generateDocument embeds every Code 128 scene in a PDF, one per page.
func generateDocument(root string, fixtures []fixture) (string, error) {
	var images []string
	for _, f := range fixtures {
		if filepath.Base(filepath.Dir(f.InputFile)) == "code128" {
			images = append(images, filepath.Join(root, f.InputFile))
		}
	}
	path := filepath.Join(root, "pdf", "code128.pdf")
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	_ = os.Remove(path)
	if err := api.ImportImagesFile(images, path, nil, nil); err != nil {
		return "", err
	}
	return path, nil
}

func saveFixtures(dir string, fixtures []fixture) error {
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create fixtures directory: %w", err)
	}
	for _, f := range fixtures {
		data, err := json.MarshalIndent(f, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, f.Name+".json"), data, 0o600); err != nil {
			return fmt.Errorf("failed to save fixture '%s': %w", f.Name, err)
		}
	}
	return nil
}
