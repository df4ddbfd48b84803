package server_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/cutout/test/integration/server/support"
	"github.com/cucumber/godog"
)

// TestFeatures runs every .feature file in features/ as a subtest.
func TestFeatures(t *testing.T) {
	entries, err := os.ReadDir("features")
	if err != nil {
		t.Fatalf("failed to read features directory: %v", err)
	}

	format := os.Getenv("GODOG_FORMAT")
	if format == "" {
		format = "pretty"
	}
	tags := os.Getenv("GODOG_TAGS")

	found := false
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".feature") {
			continue
		}
		found = true
		featurePath := filepath.Join("features", e.Name())

		t.Run(e.Name(), func(t *testing.T) {
			suite := godog.TestSuite{
				ScenarioInitializer: func(sc *godog.ScenarioContext) {
					initializeScenario(t, sc)
				},
				Options: &godog.Options{
					Format:   format,
					Tags:     tags,
					Paths:    []string{featurePath},
					TestingT: t,
					Strict:   true,
				},
			}

			if suite.Run() != 0 {
				t.Fatalf("non-zero status returned for %s", featurePath)
			}
		})
	}

	if !found {
		t.Fatalf("no .feature files found in features/")
	}
}

func initializeScenario(t *testing.T, sc *godog.ScenarioContext) {
	tc := support.NewTestContext(t)

	tc.RegisterServerSteps(sc)
	tc.RegisterUploadSteps(sc)
	tc.RegisterResponseSteps(sc)
	tc.RegisterWebSocketSteps(sc)

	sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
		tc.Cleanup()
		return ctx, err
	})
}
