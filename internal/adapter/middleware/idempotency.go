package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Headers carried by idempotent loan submissions.
const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"
	HeaderReplay    = "Ax-Idempotent-Replay"
)

const (
	pendingTTL   = 60 * time.Second
	maxClockSkew = 10 * time.Minute
	storeTimeout = 2 * time.Second
)

// capture tees the handler's response so it can be stored for replay.
type capture struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *capture) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *capture) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware runs a loan submission at most once per request id and
// session path. A repeat with the same body gets the stored response back; a
// repeat with another body, or one that arrives while the first is still
// running, gets 409.
func IdempotencyMiddleware(rdb *redis.Client, ttl time.Duration) echo.MiddlewareFunc {
	st := &store{rdb: rdb}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !mutating(req.Method) {
				return next(c)
			}

			reqID, at, err := submissionHeaders(req.Header, nowUTC())
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			hash := bodyHash(body)
			key := buildKey(req.Method, req.URL.Path, reqID)

			ctx, cancel := context.WithTimeout(req.Context(), storeTimeout)
			defer cancel()

			reserved, err := st.reserve(ctx, key, record{Pending: true, BodyHash: hash, RequestAt: at.UnixMilli(), SavedAt: nowUTC()})
			if err != nil {
				log.Error().Err(err).Str("key", key).Msg("idempotency store unavailable")
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "idempotency store unavailable"})
			}
			if !reserved {
				return replay(ctx, c, st, key, hash)
			}

			cw := &capture{ResponseWriter: c.Response().Writer, status: http.StatusOK}
			c.Response().Writer = cw
			if err := next(c); err != nil {
				c.Error(err)
			}

			done := record{Status: cw.status, Body: cw.buf.Bytes(), BodyHash: hash, RequestAt: at.UnixMilli(), SavedAt: nowUTC()}
			if err := st.complete(context.Background(), key, done, ttl); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("idempotency record not saved")
			}
			return nil
		}
	}
}

func replay(ctx context.Context, c echo.Context, st *store, key, hash string) error {
	prev, err := st.load(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("idempotency record load failed")
	}
	switch {
	case prev.BodyHash != "" && prev.BodyHash != hash:
		return c.JSON(http.StatusConflict, map[string]string{"error": HeaderRequestID + " reused with different body"})
	case !prev.Pending && prev.Status != 0 && len(prev.Body) > 0:
		c.Response().Header().Set(HeaderReplay, "true")
		return c.Blob(prev.Status, echo.MIMEApplicationJSON, prev.Body)
	default:
		return c.JSON(http.StatusConflict, map[string]string{"error": "request is already in progress"})
	}
}
