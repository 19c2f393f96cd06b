package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/helpdesk/ticketd/internal/observability"
	apperrors "github.com/helpdesk/ticketd/pkg/util"
)

func newObservedApp(t *testing.T) (*fiber.App, *observer.ObservedLogs, *observability.Metrics) {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	metrics := observability.NewMetrics()
	app := fiber.New()
	RegisterMiddlewares(app, zap.New(core), metrics, 0)
	return app, logs, metrics
}

func requestLogStatus(t *testing.T, logs *observer.ObservedLogs) int64 {
	t.Helper()
	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log entry, got %d", len(entries))
	}
	for _, field := range entries[0].Context {
		if field.Key == "status" {
			return field.Integer
		}
	}
	t.Fatal("request log entry has no status field")
	return 0
}

func TestRequestLogRecordsFailureStatus(t *testing.T) {
	app, logs, metrics := newObservedApp(t)
	app.Get("/missing", func(c *fiber.Ctx) error {
		return apperrors.NewNotFound("ticket", nil)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if got := requestLogStatus(t, logs); got != http.StatusNotFound {
		t.Errorf("request log status = %d, want %d", got, http.StatusNotFound)
	}
	if got := metrics.RequestTotal("/missing", http.MethodGet, http.StatusNotFound); got != 1 {
		t.Errorf("request counter for 404 = %d, want 1", got)
	}
	if got := metrics.RequestTotal("/missing", http.MethodGet, http.StatusOK); got != 0 {
		t.Errorf("failed request counted as 200 (%d times)", got)
	}
	if got := metrics.ErrorTotal("/missing", http.MethodGet, "NOT_FOUND"); got != 1 {
		t.Errorf("error counter = %d, want 1", got)
	}
}

func TestRequestLogRecordsPanicAsInternalError(t *testing.T) {
	app, logs, _ := newObservedApp(t)
	app.Get("/boom", func(c *fiber.Ctx) error {
		panic("boom")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := requestLogStatus(t, logs); got != http.StatusInternalServerError {
		t.Errorf("request log status = %d, want %d", got, http.StatusInternalServerError)
	}
}
