package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Timeout cancels the request context after d. If the handler has not
// started its response by then, the client gets a JSON 503 and anything
// the handler writes afterwards is dropped.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			gw := &guardedWriter{dst: w, header: make(http.Header)}
			finished := make(chan any, 1)

			go func() {
				var p any
				defer func() {
					if rec := recover(); rec != nil {
						p = rec
					}
					finished <- p
				}()
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case p := <-finished:
				if p != nil {
					panic(p)
				}
				gw.finish()
			case <-ctx.Done():
				if gw.expire() {
					WriteAPIError(w, http.StatusServiceUnavailable, CodeTimeout, "Request timeout")
				}
			}
		})
	}
}

// guardedWriter holds headers back until the handler commits a response,
// so a timeout reply never mixes with a partial one.
type guardedWriter struct {
	dst    http.ResponseWriter
	header http.Header

	mu        sync.Mutex
	committed bool
	expired   bool
}

func (g *guardedWriter) Header() http.Header { return g.header }

// commit sends the buffered headers with code; g.mu must be held.
func (g *guardedWriter) commit(code int) {
	if g.committed {
		return
	}
	g.committed = true
	h := g.dst.Header()
	for k, v := range g.header {
		h[k] = v
	}
	g.dst.WriteHeader(code)
}

func (g *guardedWriter) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.expired {
		g.commit(code)
	}
}

func (g *guardedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.expired {
		return 0, http.ErrHandlerTimeout
	}
	g.commit(http.StatusOK)
	return g.dst.Write(b)
}

// finish sends the headers of a handler that never wrote a body.
func (g *guardedWriter) finish() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commit(http.StatusOK)
}

// expire blocks further writes and reports whether the response is still
// unstarted.
func (g *guardedWriter) expire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expired = true
	return !g.committed
}
