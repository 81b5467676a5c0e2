package router

import (
	"github.com/gabrielmiguelok/kycform/pkg/core"
	"github.com/gabrielmiguelok/kycform/pkg/transport"
)

// frameConn is the part of a transport connection a socket writes through.
type frameConn interface {
	Send(msg transport.Message) error
	Close() error
	IsConnected() bool
}

// transportAdapter lets a core.Socket push frames over a transport
// connection.
type transportAdapter struct {
	conn frameConn
}

func newTransportAdapter(conn frameConn) *transportAdapter {
	return &transportAdapter{conn: conn}
}

func (a *transportAdapter) Send(msg core.Message) error {
	return a.conn.Send(transport.Message{
		Ref:     msg.Ref,
		Topic:   msg.Topic,
		Event:   msg.Event,
		Payload: msg.Payload,
	})
}

func (a *transportAdapter) Close() error {
	return a.conn.Close()
}

func (a *transportAdapter) IsConnected() bool {
	return a.conn.IsConnected()
}
