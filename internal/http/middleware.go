package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/med_store/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	cartIDKey    contextKey = "cart_id"
	sessionKey   contextKey = "session"

	CartIDHeader = "X-Cart-ID"
	cartIDCookie = "cart_id"
	maxCartIDLen = 128
	cartIDMaxAge = 30 * 24 * time.Hour
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// CartIDMiddleware resolves the shopper's cart key from the X-Cart-ID header
// or the cart_id cookie and issues a fresh one when neither is usable.
func CartIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cartID := strings.TrimSpace(r.Header.Get(CartIDHeader))
		if cartID == "" {
			if c, err := r.Cookie(cartIDCookie); err == nil {
				cartID = strings.TrimSpace(c.Value)
			}
		}
		if cartID == "" || len(cartID) > maxCartIDLen {
			cartID = uuid.NewString()
		}

		http.SetCookie(w, &http.Cookie{
			Name:     cartIDCookie,
			Value:    cartID,
			Path:     "/",
			MaxAge:   int(cartIDMaxAge.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		w.Header().Set(CartIDHeader, cartID)

		ctx := context.WithValue(r.Context(), cartIDKey, cartID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getCartID(ctx context.Context) string {
	if cartID, ok := ctx.Value(cartIDKey).(string); ok {
		return cartID
	}
	return ""
}

// RequireSession rejects requests without a valid "Authorization: Bearer" token.
func RequireSession(verifier auth.SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				handleError(w, r, auth.ErrNoSession)
				return
			}

			session, err := verifier.Verify(r.Context(), strings.TrimSpace(token))
			if err != nil {
				handleError(w, r, auth.ErrNoSession)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type RequestObserver interface {
	ObserveRequest(route string, code int)
}

// MetricsMiddleware records each request under its chi route pattern.
func MetricsMiddleware(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			observer.ObserveRequest(route, status)
		})
	}
}
