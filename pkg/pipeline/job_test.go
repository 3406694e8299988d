package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/NERVsystems/osmgrid/pkg/provider"
)

func TestJobRunsToReady(t *testing.T) {
	j := NewLoader(provider.NewMockProvider()).Start(context.Background(), berlin(32))

	var last Progress
	for p := range j.Updates() {
		last = p
	}
	res, err := j.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.Grid == nil {
		t.Fatal("no grid")
	}
	if j.Stage() != Ready {
		t.Errorf("Stage = %s, want ready", j.Stage())
	}
	if last.Stage != Ready {
		t.Errorf("last update = %+v, want ready", last)
	}
	select {
	case <-j.Done():
	default:
		t.Error("Done not closed")
	}
}

func TestJobCancelDuringFetch(t *testing.T) {
	bp := newBlockingProvider()
	j := NewLoader(bp).Start(context.Background(), berlin(16))

	<-bp.entered
	if j.Stage() != Fetching {
		t.Errorf("Stage = %s, want fetching", j.Stage())
	}
	j.Cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := j.Wait(); !errors.Is(err, ErrCancelled) {
			t.Errorf("Wait = %v, want ErrCancelled", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled job did not finish")
	}
	if j.Stage() != Cancelled {
		t.Errorf("Stage = %s, want cancelled", j.Stage())
	}
	if bp.MockProvider.FetchCount() != 0 {
		t.Error("fetch completed after cancellation")
	}
}

func TestJobFailure(t *testing.T) {
	j := NewLoader(provider.NewMockProvider().WithFailure(provider.KindNetwork)).Start(context.Background(), berlin(16))
	_, err := j.Wait()
	if provider.KindOf(err) != provider.KindNetwork {
		t.Fatalf("Wait = %v, want network error", err)
	}
	p := j.Progress()
	if p.Stage != Failed || p.Err == nil {
		t.Errorf("Progress = %+v, want failed with error", p)
	}
}

func TestJobParentContextCancels(t *testing.T) {
	bp := newBlockingProvider()
	ctx, cancel := context.WithCancel(context.Background())
	j := NewLoader(bp).Start(ctx, berlin(16))

	<-bp.entered
	cancel()
	if _, err := j.Wait(); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Wait = %v, want ErrCancelled", err)
	}
}
