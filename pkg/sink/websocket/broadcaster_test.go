package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/max1187x/pkg/mtp"
	"github.com/robotalks/max1187x/pkg/sink/msgs"
)

func TestBroadcast(t *testing.T) {
	b := NewBroadcaster("panel")
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()
	defer b.Close()

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), "", "http://localhost/")
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return b.Clients() == 1 }, time.Second, time.Millisecond)

	b.HandleReport(context.Background(), &mtp.Report{Words: []uint16{0x1103, 0x0121, 0x0001, 0x0002}})
	var data []byte
	require.NoError(t, websocket.Message.Receive(conn, &data))
	m, err := msgs.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, mtp.RptPowerMode, m.(*msgs.ReportMsg).ReportID)
	assert.Equal(t, "panel", m.(*msgs.ReportMsg).Device)

	conn.Close()
	assert.Eventually(t, func() bool { return b.Clients() == 0 }, time.Second, time.Millisecond)
}
