package audit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Actions recorded by the frontend.
const (
	ActionLogin        = "session.login"
	ActionLogout       = "session.logout"
	ActionAccessDenied = "access.denied"
	ActionCalendarView = "calendar.view"
)

// Entry is one audit record.
type Entry struct {
	At     time.Time
	Actor  string
	Action string
	Target string
	Detail map[string]any
	IP     string
}

// Sink persists entries. Implementations are called from a single goroutine.
type Sink interface {
	InsertAuditEntry(ctx context.Context, e Entry) error
}

// Logger writes audit records to slog synchronously and to a Sink
// asynchronously.
type Logger struct {
	sink   Sink
	ch     chan Entry
	done   chan struct{}
	mu     sync.Mutex // guards closed + ch send atomically
	closed bool
	once   sync.Once
}

// New creates a new audit Logger. sink may be nil, in which case records only
// go to slog. The buffer parameter controls the async channel size.
func New(sink Sink, buffer int) *Logger {
	if buffer <= 0 {
		buffer = 256
	}
	l := &Logger{
		sink: sink,
		ch:   make(chan Entry, buffer),
		done: make(chan struct{}),
	}
	go l.drain()
	return l
}

// Log records an audit event.
// actor: who performed the action (usually the token subject)
// action: what was done (one of the Action constants)
// target: what was acted on (empty when not applicable)
// detail: additional metadata (nil is fine)
func (l *Logger) Log(ctx context.Context, actor, action, target string, detail map[string]any) {
	ip := ipFromContext(ctx)

	attrs := []any{
		slog.String("actor", actor),
		slog.String("action", action),
	}
	if target != "" {
		attrs = append(attrs, slog.String("target", target))
	}
	if ip != "" {
		attrs = append(attrs, slog.String("ip_address", ip))
	}
	if detail != nil {
		attrs = append(attrs, slog.Any("detail", detail))
	}
	slog.Info("audit", attrs...)

	e := Entry{
		At:     time.Now().UTC(),
		Actor:  actor,
		Action: action,
		Target: target,
		Detail: detail,
		IP:     ip,
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- e:
	default:
		slog.Warn("audit log channel full, dropping event", "action", action)
	}
}

func (l *Logger) drain() {
	defer close(l.done)
	for e := range l.ch {
		if l.sink == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.sink.InsertAuditEntry(ctx, e); err != nil {
			slog.Error("audit log insert failed", "error", err, "action", e.Action)
		}
		cancel()
	}
}

// Close stops accepting records and waits for queued ones to be written.
// Safe to call multiple times.
func (l *Logger) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.ch)
		l.mu.Unlock()
	})
	<-l.done
	return nil
}

type ctxKey string

const ipKey ctxKey = "audit_ip"

// WithIP returns a context with the client IP address stored for audit logging.
func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipKey, ip)
}

// IPFromRequest extracts the client IP from an HTTP request.
// X-Real-Ip and X-Forwarded-For are informational only and can be spoofed.
func IPFromRequest(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip != "" {
		return ip
	}
	ip = r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if idx := strings.IndexByte(ip, ','); idx != -1 {
			ip = strings.TrimSpace(ip[:idx])
		}
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ipFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ipKey).(string)
	return ip
}
