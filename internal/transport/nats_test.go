package transport

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func dialNATS(t *testing.T) *nats.Conn {
	t.Helper()
	conn, err := nats.Connect(nats.DefaultURL, nats.Timeout(500*time.Millisecond))
	if err != nil {
		t.Skip("NATS server not available, skipping test")
	}
	return conn
}

func TestNATSSubmitRoundTrips(t *testing.T) {
	serverConn := dialNATS(t)
	defer serverConn.Close()
	clientConn := dialNATS(t)
	defer clientConn.Close()

	subject := "mpsim.test.worker"
	server, err := ServeNATS(serverConn, subject, func(ctx context.Context, body []byte) []byte {
		return append([]byte("OK\n\n"), body...)
	})
	if err != nil {
		t.Fatalf("unexpected error starting server: %v", err)
	}
	defer server.Close()

	client, err := NewNATS(clientConn, subject)
	if err != nil {
		t.Fatalf("unexpected error starting client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Submit(ctx, []byte("incrementYear"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "OK\n\nincrementYear"
	if string(resp) != want {
		t.Fatalf("expected %q, got %q", want, string(resp))
	}
}

func TestNATSCloseRejectsPendingRequests(t *testing.T) {
	clientConn := dialNATS(t)
	defer clientConn.Close()

	client, err := NewNATS(clientConn, "mpsim.test.unhandled")
	if err != nil {
		t.Fatalf("unexpected error starting client: %v", err)
	}

	done := make(chan struct{})
	var submitErr error
	go func() {
		_, submitErr = client.Submit(context.Background(), []byte("x"))
		close(done)
	}()

	// Give Submit time to register in the pending map before closing.
	time.Sleep(50 * time.Millisecond)
	client.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit did not return after Close")
	}
	if submitErr == nil {
		t.Fatal("expected an error after Close, got nil")
	}
}
