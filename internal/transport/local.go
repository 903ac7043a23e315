package transport

import (
	"context"
	"sync"
	"sync/atomic"
)

type localRequest struct {
	id      uint64
	ctx     context.Context
	body    []byte
	replyTo chan []byte
}

// Local is an in-process, channel-backed Transport. It exists so cmd/mpsim
// and tests can drive a worker's request/response loop without standing up
// a NATS server; it implements the same black-box submit-and-await contract
// NATS does (spec §5), just over Go channels instead of a network subject.
type Local struct {
	handler Handler
	reqCh   chan localRequest
	nextID  atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

// NewLocal constructs a Local transport backed by handler and starts its
// dispatch loop.
func NewLocal(handler Handler) *Local {
	l := &Local{
		handler: handler,
		reqCh:   make(chan localRequest),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Local) run() {
	for {
		select {
		case <-l.done:
			return
		case req := <-l.reqCh:
			go func(req localRequest) {
				resp := l.handler(req.ctx, req.body)
				select {
				case req.replyTo <- resp:
				case <-req.ctx.Done():
				case <-l.done:
				}
			}(req)
		}
	}
}

// Submit blocks until the handler goroutine replies or ctx is canceled or
// the transport is closed.
func (l *Local) Submit(ctx context.Context, body []byte) ([]byte, error) {
	req := localRequest{
		id:      l.nextID.Add(1),
		ctx:     ctx,
		body:    body,
		replyTo: make(chan []byte, 1),
	}

	select {
	case l.reqCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, ErrWorkerTerminated
	}

	select {
	case resp := <-req.replyTo:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.done:
		return nil, ErrWorkerTerminated
	}
}

// Close stops the dispatch loop. Any Submit call still waiting for a reply
// unblocks with ErrWorkerTerminated.
func (l *Local) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

var _ Transport = (*Local)(nil)
