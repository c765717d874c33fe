// Package websocket broadcasts encoded messages to websocket clients.
package websocket

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/max1187x/pkg/mtp"
	"github.com/robotalks/max1187x/pkg/sink/msgs"
	"github.com/robotalks/max1187x/pkg/touch"
)

// Broadcaster sends every message to all connected clients as binary
// frames. A client failing a send is dropped.
type Broadcaster struct {
	Device string

	lock    sync.Mutex
	clients map[*websocket.Conn]chan struct{}
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(device string) *Broadcaster {
	return &Broadcaster{Device: device, clients: make(map[*websocket.Conn]chan struct{})}
}

// Handler serves websocket clients.
func (b *Broadcaster) Handler() websocket.Handler {
	return b.serve
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) serve(conn *websocket.Conn) {
	doneCh := make(chan struct{})
	b.lock.Lock()
	b.clients[conn] = doneCh
	b.lock.Unlock()
	glog.Infof("websocket client %s connected", conn.Request().RemoteAddr)

	go func() {
		var discard []byte
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				b.drop(conn)
				return
			}
		}
	}()
	<-doneCh
	glog.Infof("websocket client %s disconnected", conn.Request().RemoteAddr)
}

func (b *Broadcaster) drop(conn *websocket.Conn) {
	b.lock.Lock()
	doneCh, ok := b.clients[conn]
	delete(b.clients, conn)
	b.lock.Unlock()
	if ok {
		close(doneCh)
	}
}

// Broadcast sends an encoded message to all clients.
func (b *Broadcaster) Broadcast(msg msgs.Message) {
	data, err := msgs.Encode(msg)
	if err != nil {
		glog.Errorf("encode: %v", err)
		return
	}
	b.lock.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.lock.Unlock()
	for _, conn := range conns {
		if err := websocket.Message.Send(conn, data); err != nil {
			glog.Warningf("websocket send: %v", err)
			b.drop(conn)
		}
	}
}

// Close disconnects all clients.
func (b *Broadcaster) Close() error {
	b.lock.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for conn := range b.clients {
		conns = append(conns, conn)
	}
	b.lock.Unlock()
	for _, conn := range conns {
		conn.Close()
		b.drop(conn)
	}
	return nil
}

// HandleReport implements mtp.ReportSink.
func (b *Broadcaster) HandleReport(ctx context.Context, rpt *mtp.Report) {
	b.Broadcast(msgs.NewReportMsg(b.Device, rpt))
}

// HandleTouch implements driver.TouchSink.
func (b *Broadcaster) HandleTouch(ctx context.Context, u *touch.Update) {
	b.Broadcast(msgs.NewTouchMsg(b.Device, u))
}
