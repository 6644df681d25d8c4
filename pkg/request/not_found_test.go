package request

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jacobbrewer1/ticketbot/pkg/logging"
	"github.com/stretchr/testify/require"
)

func TestNotFoundHandler(t *testing.T) {
	// Setup logger
	l, err := logging.CommonLogger(logging.NewConfig(`tests`))
	require.NoError(t, err, "Failed to create logger")

	tests := []struct {
		name    string
		handler http.HandlerFunc
		r       *http.Request
		status  int
		want    string
	}{
		{
			name:    "NotFound",
			handler: NotFoundHandler(l),
			r:       httptest.NewRequest(http.MethodGet, "/", nil),
			status:  http.StatusNotFound,
			want:    "{\"Message\":\"Not found\"}\n",
		},
		{
			name:    "MethodNotAllowed",
			handler: MethodNotAllowedHandler(l),
			r:       httptest.NewRequest(http.MethodPost, "/metrics", nil),
			status:  http.StatusMethodNotAllowed,
			want:    "{\"Message\":\"Method POST not allowed on /metrics\"}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, tt.r)
			require.Equal(t, tt.status, w.Code)
			require.Equal(t, tt.want, w.Body.String())
			require.Equal(t, "application/json", w.Header().Get("Content-Type"))
		})
	}
}

func TestNewMessage(t *testing.T) {
	require.Equal(t, "ticket 5", NewMessage("ticket %d", 5).Message)
	require.Equal(t, "Not found", NewMessage("Not found").Message)
	require.Equal(t, "100%", NewMessage("%d%%", 100).Message)

	me := NewMessageError("failed", errors.New("boom"))
	require.Equal(t, "boom", me.Error)
}
