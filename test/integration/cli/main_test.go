package cli_test

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/barscan/test/integration/cli/support"
	"github.com/cucumber/godog"
)

// testContext holds the global test context.
var testContext *support.TestContext

// InitializeScenario sets up the test context for each scenario.
func InitializeScenario(sc *godog.ScenarioContext) {
	var err error
	testContext, err = support.NewTestContext()
	if err != nil {
		panic(fmt.Sprintf("Failed to create test context: %v", err))
	}

	// Register step definitions
	testContext.RegisterCommonSteps(sc)
	testContext.RegisterImageSteps(sc)
	testContext.RegisterServerSteps(sc)

	// Setup scenario cleanup
	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if cleanupErr := testContext.Cleanup(); cleanupErr != nil {
			fmt.Printf("Warning: Failed to cleanup test context: %v\n", cleanupErr)
		}
		return ctx, nil
	})
}

// TestFeatures runs every feature file as a subtest. Commands run
// in-process against the cobra command tree, so no binary is built first.
// GODOG_FORMAT and GODOG_TAGS override the formatter and the tag filter.
func TestFeatures(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping feature suite in short mode")
	}

	paths, err := filepath.Glob(filepath.Join("features", "*.feature"))
	if err != nil {
		t.Fatalf("failed to list features: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("no .feature files found in features/")
	}

	opts := godog.Options{
		Format: cmp.Or(os.Getenv("GODOG_FORMAT"), "pretty"),
		Tags:   os.Getenv("GODOG_TAGS"),
		Strict: true,
	}
	for _, path := range paths {
		t.Run(strings.TrimSuffix(filepath.Base(path), ".feature"), func(t *testing.T) {
			o := opts
			o.Paths = []string{path}
			o.TestingT = t
			suite := godog.TestSuite{
				Name:                filepath.Base(path),
				ScenarioInitializer: InitializeScenario,
				Options:             &o,
			}
			if status := suite.Run(); status != 0 {
				t.Fatalf("feature %s finished with status %d", path, status)
			}
		})
	}
}
