package transport

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalSubmitRoundTrips(t *testing.T) {
	local := NewLocal(func(ctx context.Context, body []byte) []byte {
		return append([]byte("OK\n\n"), body...)
	})
	defer local.Close()

	resp, err := local.Submit(context.Background(), []byte("setStream manufacture 100 kg"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "OK\n\nsetStream manufacture 100 kg"
	if string(resp) != want {
		t.Fatalf("expected %q, got %q", want, string(resp))
	}
}

func TestLocalSubmitRespectsContextCancellation(t *testing.T) {
	local := NewLocal(func(ctx context.Context, body []byte) []byte {
		<-ctx.Done()
		return nil
	})
	defer local.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := local.Submit(ctx, []byte("slow"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestLocalSubmitAfterCloseReturnsWorkerTerminated(t *testing.T) {
	local := NewLocal(func(ctx context.Context, body []byte) []byte { return body })
	local.Close()

	_, err := local.Submit(context.Background(), []byte("x"))
	if !errors.Is(err, ErrWorkerTerminated) {
		t.Fatalf("expected ErrWorkerTerminated, got %v", err)
	}
}
