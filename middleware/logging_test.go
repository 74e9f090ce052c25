package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/deployservice/deploy-service/services"
	"github.com/deployservice/deploy-service/tokens"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(logger, nil))
	r.Get("/api/v1/projects/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects/billing", nil))

	require.Equal(t, http.StatusTeapot, w.Code)

	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/v1/projects/{name}", fields["route"])
	assert.Equal(t, "/api/v1/projects/billing", fields["path"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, int64(5), fields["bytes"])
	assert.NotEmpty(t, fields["request_id"])
}

func TestRequestLogger_DefaultStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	handler := RequestLogger(zap.New(core), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
	assert.Equal(t, "unmatched", entries[0].ContextMap()["route"])
}

func TestRequestLogger_InsideFailureTranslator(t *testing.T) {
	newPipeline := func(handler http.Handler) (http.Handler, *observer.ObservedLogs) {
		core, logs := observer.New(zapcore.InfoLevel)
		logger := zap.New(core)
		translator := NewFailureTranslator(nil, logger)

		r := chi.NewRouter()
		r.Use(chimw.RequestID)
		r.Use(translator.Middleware)
		r.Use(RequestLogger(logger, nil))
		r.Method(http.MethodGet, "/api/v1/projects/{name}", handler)
		return r, logs
	}
	loggedStatus := func(t *testing.T, logs *observer.ObservedLogs) interface{} {
		t.Helper()
		entries := logs.FilterMessage("request completed").All()
		require.Len(t, entries, 1)
		return entries[0].ContextMap()["status"]
	}

	t.Run("returned domain error is logged with its status", func(t *testing.T) {
		translator := NewFailureTranslator(nil, zap.NewNop())
		h, logs := newPipeline(translator.Handle(func(w http.ResponseWriter, r *http.Request) error {
			return services.NewDomainError(services.ErrorTypeNotFound, `project "payments" not found`, nil)
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects/payments", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, int64(http.StatusNotFound), loggedStatus(t, logs))
	})

	t.Run("panic is logged as 500 and still translated", func(t *testing.T) {
		h, logs := newPipeline(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("nil map write")
		}))

		w := httptest.NewRecorder()
		require.NotPanics(t, func() {
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects/billing", nil))
		})

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, internalErrorBody, w.Body.String())
		assert.Equal(t, int64(http.StatusInternalServerError), loggedStatus(t, logs))
		assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
	})
}

func TestPrincipalContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Nil(t, GetPrincipalFromContext(req.Context()))

	principal := &tokens.Principal{Subject: "user-1"}
	ctx := WithPrincipal(req.Context(), principal)
	assert.Same(t, principal, GetPrincipalFromContext(ctx))
	assert.Empty(t, GetRequestIDFromContext(ctx))
}
