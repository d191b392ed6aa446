package link

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestIsRadioURL(t *testing.T) {
	testCases := []struct {
		url   string
		radio bool
	}{
		{"mqtt://localhost:1883/kbst/", true},
		{"mqtts://broker/", true},
		{"ws://localhost:8080/lora", true},
		{"/dev/ttyACM0", false},
		{"http://localhost/", false},
		{"", false},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.radio, IsRadioURL(tc.url), tc.url)
	}
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "http://localhost/", "sat", Ground)
	require.Error(t, err)
}

func TestOpenWebsocket(t *testing.T) {
	server := httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		var pkt []byte
		for websocket.Message.Receive(conn, &pkt) == nil {
			websocket.Message.Send(conn, append([]byte{pkt[1], pkt[0]}, pkt[2:]...))
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l, err := Open(ctx, "ws"+server.URL[len("http"):], "sat", Ground)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Send([]byte{0xA5, 0xA6, 'x'}))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pkt, ok := l.Receive(); ok {
			require.Equal(t, []byte{0xA6, 0xA5, 'x'}, pkt)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no packet received")
}
