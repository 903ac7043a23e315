package transport

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"
)

// NATS is a request/reply Transport over a NATS subject, for cmd/mpsim-worker
// talking to a remote host. It assigns its own monotonically increasing
// request id (carried as a decimal string in the Mpsim-Request-Id header) and keeps
// a sync.Map of request id → pending response channel, exactly as spec §5
// describes, rather than relying on nats.go's built-in inbox-based Request
// helper — that map is what lets Close reject every in-flight request with
// a uniform termination error instead of letting each Submit time out on
// its own.
type NATS struct {
	conn    *nats.Conn
	subject string
	inbox   string
	sub     *nats.Subscription

	nextID  atomic.Uint64
	pending sync.Map // uint64 -> chan *nats.Msg

	closeOnce sync.Once
	closed    atomic.Bool
}

const requestIDHeader = "Mpsim-Request-Id"

// manifestHeader carries a reply's JWT provenance manifest, when the
// NATSServer was given a signer. The response body itself is never
// altered by signing — §6's envelope format crosses the NATS boundary
// byte-for-byte, the manifest rides alongside it in a header.
const manifestHeader = "Mpsim-Manifest"

// NewNATS constructs a client-side NATS transport that publishes requests
// to subject and listens for replies on a private inbox.
func NewNATS(conn *nats.Conn, subject string) (*NATS, error) {
	n := &NATS{
		conn:    conn,
		subject: subject,
		inbox:   nats.NewInbox(),
	}

	sub, err := conn.Subscribe(n.inbox, n.onReply)
	if err != nil {
		return nil, fmt.Errorf("transport: subscribe reply inbox: %w", err)
	}
	n.sub = sub
	return n, nil
}

func (n *NATS) onReply(msg *nats.Msg) {
	id, ok := requestIDFromHeader(msg.Header)
	if !ok {
		return
	}
	if ch, ok := n.pending.LoadAndDelete(id); ok {
		ch.(chan *nats.Msg) <- msg
	}
}

// Submit publishes body to the worker subject and waits for the matching
// reply, ctx cancellation, or transport closure.
func (n *NATS) Submit(ctx context.Context, body []byte) ([]byte, error) {
	if n.closed.Load() {
		return nil, ErrWorkerTerminated
	}

	id := n.nextID.Add(1)
	replyCh := make(chan *nats.Msg, 1)
	n.pending.Store(id, replyCh)
	defer n.pending.Delete(id)

	msg := &nats.Msg{
		Subject: n.subject,
		Reply:   n.inbox,
		Data:    body,
		Header:  nats.Header{},
	}
	setRequestIDHeader(msg.Header, id)

	if err := n.conn.PublishMsg(msg); err != nil {
		return nil, fmt.Errorf("transport: publish request: %w", err)
	}

	select {
	case resp := <-replyCh:
		if resp == nil {
			// Close closed the pending channel out from under us rather
			// than delivering a reply.
			return nil, ErrWorkerTerminated
		}
		return resp.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unsubscribes from the reply inbox and rejects every request still
// awaiting a reply with ErrWorkerTerminated.
func (n *NATS) Close() error {
	var err error
	n.closeOnce.Do(func() {
		n.closed.Store(true)
		if n.sub != nil {
			err = n.sub.Unsubscribe()
		}
		n.pending.Range(func(key, value any) bool {
			close(value.(chan *nats.Msg))
			n.pending.Delete(key)
			return true
		})
	})
	return err
}

var _ Transport = (*NATS)(nil)

// NATSServer is the worker-side counterpart: it subscribes to a subject,
// invokes Handler for each request, and publishes the handler's response to
// the request's reply subject, preserving the request id header so the
// client's pending map can match it.
type NATSServer struct {
	conn    *nats.Conn
	subject string
	handler Handler
	sub     *nats.Subscription
	signer  *ManifestSigner
}

// ServeNATS starts a NATSServer subscribed to subject.
func ServeNATS(conn *nats.Conn, subject string, handler Handler) (*NATSServer, error) {
	s := &NATSServer{conn: conn, subject: subject, handler: handler}
	sub, err := conn.Subscribe(subject, s.onRequest)
	if err != nil {
		return nil, fmt.Errorf("transport: subscribe request subject: %w", err)
	}
	s.sub = sub
	return s, nil
}

// SetSigner attaches a ManifestSigner so every reply this server publishes
// carries a provenance manifest in the Mpsim-Manifest header alongside its
// unmodified §6 envelope body. A nil signer (the default) sends replies
// with no manifest header at all.
func (s *NATSServer) SetSigner(signer *ManifestSigner) {
	s.signer = signer
}

func (s *NATSServer) onRequest(msg *nats.Msg) {
	if msg.Reply == "" {
		return
	}
	id, _ := requestIDFromHeader(msg.Header)
	go func() {
		resp := s.handler(context.Background(), msg.Data)
		reply := &nats.Msg{Subject: msg.Reply, Data: resp, Header: nats.Header{}}
		setRequestIDHeader(reply.Header, id)
		if s.signer != nil {
			if token, err := s.signer.Sign(resp); err == nil {
				reply.Header.Set(manifestHeader, token)
			}
		}
		_ = s.conn.PublishMsg(reply)
	}()
}

// Close stops accepting new requests. In-flight handler goroutines are not
// canceled — the engine has no cancellation points per spec §5 — but no
// further replies will be dispatched to a new subscriber.
func (s *NATSServer) Close() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Unsubscribe()
}

func setRequestIDHeader(h nats.Header, id uint64) {
	h.Set(requestIDHeader, strconv.FormatUint(id, 10))
}

func requestIDFromHeader(h nats.Header) (uint64, bool) {
	v := h.Get(requestIDHeader)
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
