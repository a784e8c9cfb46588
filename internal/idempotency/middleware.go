package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/joao-fontenele/storefront-orders/internal/apperr"
	"github.com/joao-fontenele/storefront-orders/internal/auth"
	"github.com/joao-fontenele/storefront-orders/internal/httpx"
)

const (
	HeaderKey    = "Idempotency-Key"
	HeaderReplay = "X-Idempotent-Replay"
)

// PendingTTL bounds how long an unfinished request holds its key. It must
// outlive the server write timeout.
const PendingTTL = time.Minute

// Middleware guards a handler with Idempotency-Key semantics. Requests without
// the header pass straight through. Keys are scoped to the authenticated user.
// Responses with a 5xx status are not stored so the client can retry. The key
// is released if the handler panics. Completion and release outlive the client
// connection.
func Middleware(store Store, logger *slog.Logger, ttl time.Duration) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderKey))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				httpx.WriteError(w, r, logger, apperr.Validation("unable to read request body"))
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			scope := "anonymous"
			if id, ok := auth.IdentityFromContext(r.Context()); ok {
				scope = strconv.FormatInt(id.UserID, 10)
			}
			scoped := scope + ":" + key
			fp := fingerprint([]byte(r.Method), []byte(r.URL.Path), body)

			res, err := store.Reserve(r.Context(), scoped, fp, PendingTTL)
			if err != nil {
				if errors.Is(err, ErrFingerprintMismatch) {
					httpx.WriteError(w, r, logger, apperr.Conflict("idempotency key already used for a different request"))
					return
				}
				httpx.WriteError(w, r, logger, err)
				return
			}

			switch res.State {
			case ReservationCompleted:
				replay(w, res.Record)
				return
			case ReservationPending:
				httpx.WriteError(w, r, logger, apperr.Conflict("a request with this idempotency key is in progress"))
				return
			}

			detached := context.WithoutCancel(r.Context())
			release := func() {
				if err := store.Release(detached, scoped); err != nil {
					logger.Error("failed to release idempotency key", "error", err)
				}
			}
			defer func() {
				if p := recover(); p != nil {
					release()
					panic(p)
				}
			}()

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				release()
				return
			}

			// On failure the key stays pending until PendingTTL runs out.
			err = store.Complete(detached, scoped, Record{
				Fingerprint:    fp,
				ResponseStatus: rec.status,
				ContentType:    rec.Header().Get("Content-Type"),
				ResponseBody:   rec.body.Bytes(),
			}, ttl)
			if err != nil {
				logger.Error("failed to store idempotent response", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, rec Record) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(HeaderReplay, "true")
	w.WriteHeader(rec.ResponseStatus)
	_, _ = w.Write(rec.ResponseBody)
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}
