package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/concrnt-community/internal/domain"
	"github.com/totegamma/concrnt-community/internal/present/rest/presenter"
	"github.com/totegamma/concrnt-community/internal/service"
)

const ReplayedHeader = "Idempotent-Replayed"

type IdempotencyMiddleware struct {
	store service.IdempotencyStore
	ttl   time.Duration
}

func NewIdempotencyMiddleware(store service.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		store: store,
		ttl:   ttl,
	}
}

type recordingWriter struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Replay answers a retried mutation carrying the same Idempotency-Key with
// the first response instead of executing it again. Keys are scoped to the
// requester, method and path. Server errors are not remembered.
// Must run after IdentifyIdentity.
func (m *IdempotencyMiddleware) Replay(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		key := req.Header.Get(domain.IdempotencyKeyHeader)
		if key == "" || req.Method == http.MethodGet || req.Method == http.MethodHead || req.Method == http.MethodOptions {
			return next(c)
		}

		ctx := req.Context()

		body, err := io.ReadAll(req.Body)
		if err != nil {
			return presenter.BadRequest(c, err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))

		requester, _ := domain.RequesterFromContext(ctx)
		storeKey := service.IdempotencyKey(string(requester), key, req.Method, req.URL.Path)
		bodyHash := service.BodyHash(body)

		stored, found, err := m.store.Get(ctx, storeKey)
		if err != nil {
			slog.WarnContext(ctx, "idempotency lookup failed", slog.String("error", err.Error()), slog.String("module", "idempotency"))
			return next(c)
		}
		if found {
			if stored.BodyHash != bodyHash {
				return presenter.UnprocessableEntity(c, "idempotency key reused with a different request body")
			}
			c.Response().Header().Set(ReplayedHeader, "true")
			return c.Blob(stored.Status, stored.ContentType, stored.Body)
		}

		writer := &recordingWriter{ResponseWriter: c.Response().Writer}
		c.Response().Writer = writer

		if err := next(c); err != nil {
			return err
		}

		status := c.Response().Status
		if status >= http.StatusInternalServerError {
			return nil
		}

		err = m.store.Set(ctx, storeKey, service.StoredResponse{
			BodyHash:    bodyHash,
			Status:      status,
			ContentType: c.Response().Header().Get(echo.HeaderContentType),
			Body:        writer.body.Bytes(),
		}, m.ttl)
		if err != nil {
			slog.WarnContext(ctx, "idempotency store failed", slog.String("error", err.Error()), slog.String("module", "idempotency"))
		}
		return nil
	}
}
