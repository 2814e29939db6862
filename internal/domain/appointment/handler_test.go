package appointment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/internal/platform/httpx"
	"github.com/clinicore/clinicore/internal/platform/lock"
)

func TestRespondErrStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"slot conflict", ErrConflict, http.StatusConflict},
		{"schedule lock held elsewhere", lock.ErrNotAcquired, http.StatusConflict},
		{"inverted times", ErrInvalidTime, http.StatusBadRequest},
		{"times off the date", ErrTimeOutsideDate, http.StatusBadRequest},
		{"terminal status", ErrTerminalStatus, http.StatusBadRequest},
		{"unknown participant", ErrUnknownParticipant, http.StatusNotFound},
		{"missing appointment", ErrNotFound, http.StatusNotFound},
	}
	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/appointments", nil)
			rec := httptest.NewRecorder()
			require.NoError(t, respondErr(e.NewContext(req, rec), tt.err))

			assert.Equal(t, tt.want, rec.Code)

			var env httpx.Envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.False(t, env.Success)
			assert.NotEqual(t, "internal server error", env.Message)
		})
	}
}
