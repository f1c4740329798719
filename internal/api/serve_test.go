package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BTreeMap/ReviewPipe/internal/flow"
	"github.com/BTreeMap/ReviewPipe/internal/genai"
	"github.com/BTreeMap/ReviewPipe/internal/review"
	"github.com/BTreeMap/ReviewPipe/internal/store"
)

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := review.DefaultConfig()
	records := store.NewInMemoryStore()
	f := flow.NewInterviewFlow(&mockLLM{}, records, cfg)
	srv := NewServer(f, records, records, flow.NewSummaryBuilder(nil, cfg),
		WithAddr("127.0.0.1:0"), WithJanitorInterval(time.Millisecond), WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestRun_RequiresAPIKey(t *testing.T) {
	err := Run(context.Background(), nil, nil, nil)
	if !errors.Is(err, genai.ErrMissingAPIKey) {
		t.Errorf("expected missing API key error, got %v", err)
	}
}

func TestRun_BadStageConfig(t *testing.T) {
	err := Run(context.Background(), nil, []genai.Option{genai.WithAPIKey("k")}, []Option{WithStageConfig("/does/not/exist.yaml")})
	if err == nil {
		t.Error("expected an error for a missing stage config")
	}
}
