package wsrelay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// newRelayServer spins up a websocket server answering every request with an
// empty result, as fast as the connection allows.
func newRelayServer(t *testing.T) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()

			for {
				var req request
				if err := conn.ReadJSON(&req); err != nil {
					return
				}
				resp := response{Id: req.Id, Result: json.RawMessage(`"ok"`)}
				if err := conn.WriteJSON(resp); err != nil {
					return
				}
			}
		},
	))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRequestResponseRoundTrip(t *testing.T) {
	svc := NewSessionRelay(newRelayServer(t)).(*service)
	require.NoError(t, svc.Start())
	defer svc.Stop()

	ctx := context.Background()
	// a response may come back before the write call even returns: none of
	// these must be dropped or time out.
	for i := 0; i < 20; i++ {
		require.NoError(t, svc.DisconnectSession(ctx, "topic"))
	}
}

func TestRequestOnClosedConnection(t *testing.T) {
	svc := NewSessionRelay(newRelayServer(t)).(*service)
	require.NoError(t, svc.Start())
	svc.Stop()

	// a write failure surfaces immediately instead of waiting for a
	// response that will never arrive.
	err := svc.DisconnectSession(context.Background(), "topic")
	require.Error(t, err)
	require.ErrorContains(t, err, "sending")
}
