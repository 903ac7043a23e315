// Package transport implements the worker/host request-response protocol
// spec §5 describes: the host treats a worker as a black box it submits a
// request to and awaits a response from, identified by a monotonically
// increasing request id. Two implementations are provided — Local, an
// in-process channel-backed transport for cmd/mpsim and tests, and NATS,
// a request/reply transport over a NATS subject for cmd/mpsim-worker.
package transport

import (
	"context"
	"errors"
)

// ErrWorkerTerminated is returned to every request still pending when a
// worker shuts down, per spec §5's uniform termination error.
var ErrWorkerTerminated = errors.New("transport: worker terminated")

// Handler processes one request body and produces the response body — the
// "OK\n\n<csv>" / "<ErrorKind>: <message>\n\n" envelope from spec §6. It is
// supplied by the worker side (cmd/mpsim, cmd/mpsim-worker); this package
// only moves bytes between caller and handler, it never parses or
// constructs the envelope itself.
type Handler func(ctx context.Context, body []byte) []byte

// Transport submits a request body and blocks until the matching response
// arrives or ctx is canceled.
type Transport interface {
	Submit(ctx context.Context, body []byte) ([]byte, error)
	Close() error
}
