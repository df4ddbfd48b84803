package support

import (
	"errors"
	"fmt"
	"net/http/httptest"

	"github.com/MeKo-Tech/cutout/internal/pipeline"
	"github.com/MeKo-Tech/cutout/internal/server"
	"github.com/MeKo-Tech/cutout/internal/testutil"
	"github.com/cucumber/godog"
)

const fakeModelSize = 32

// RegisterServerSteps registers the steps that start a server.
func (tc *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the cutout server is running$`, tc.theServerIsRunning)
	sc.Step(`^the cutout server is running with a failing model$`, tc.theServerIsRunningWithAFailingModel)
	sc.Step(`^the cutout server is running with at most (\d+) images per batch$`, tc.theServerIsRunningWithBatchLimit)
}

func (tc *TestContext) startServer(seg *testutil.FakeSegmenter, cfg server.Config) error {
	if tc.Server != nil {
		return errors.New("server already running")
	}
	pl, err := pipeline.NewBuilder().WithSegmenter(seg).Build()
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	srv := server.NewServerWithPipeline(pl, cfg)
	tc.Segmenter = seg
	tc.Server = httptest.NewServer(srv.Handler())
	tc.closers = append(tc.closers, srv.Close)
	return nil
}

func (tc *TestContext) theServerIsRunning() error {
	return tc.startServer(testutil.NewDiscSegmenter(fakeModelSize, 0.6), server.Config{})
}

func (tc *TestContext) theServerIsRunningWithAFailingModel() error {
	return tc.startServer(testutil.NewFailingSegmenter(fakeModelSize, testutil.ErrFakeInference), server.Config{})
}

func (tc *TestContext) theServerIsRunningWithBatchLimit(n int) error {
	return tc.startServer(testutil.NewDiscSegmenter(fakeModelSize, 0.6), server.Config{MaxBatchItems: n})
}
