package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/policy"
)

func record(t *testing.T, fn func(c echo.Context) error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := fn(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestOKEnvelope(t *testing.T) {
	rec := record(t, func(c echo.Context) error {
		return OK(c, http.StatusCreated, "created", map[string]string{"id": "1"})
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"success":true`) {
		t.Errorf("body missing success flag: %s", body)
	}
}

func TestErrorTranslation(t *testing.T) {
	errGone := errors.New("appointment not found")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"denied", policy.Denied(policy.Decision{Reason: "not the record owner"}), http.StatusForbidden},
		{
			"denied concealed",
			policy.Denied(policy.Decision{Reason: "not the record owner", ConcealNotFound: true}),
			http.StatusNotFound,
		},
		{"not found sentinel", fmt.Errorf("load: %w", errGone), http.StatusNotFound},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := record(t, func(c echo.Context) error {
				return Error(c, tt.err, errGone)
			})
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if !strings.Contains(rec.Body.String(), `"success":false`) {
				t.Errorf("body missing failure flag: %s", rec.Body.String())
			}
		})
	}
}

func TestErrorDoesNotLeakInternalCause(t *testing.T) {
	rec := record(t, func(c echo.Context) error {
		return Error(c, errors.New("pq: password authentication failed"))
	})
	if strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("internal cause leaked: %s", rec.Body.String())
	}
}
