package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// Conn is a bidirectional channel carrying whole JSON-RPC messages.
// ReadMessage returns io.EOF once the peer stops sending.
type Conn interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	WriteMessage(ctx context.Context, msg []byte) error
}

// Serve runs the message loop of one connection until the peer stops
// sending, ctx is canceled, or the channel fails. Messages are handled one
// at a time and replies are written in arrival order. Canceling ctx
// abandons the message in flight: its upstream call is canceled and no
// reply is written.
func (sess *Session) Serve(ctx context.Context, conn Conn) error {
	sess.srv.metrics.SessionOpened()
	defer sess.srv.metrics.SessionClosed()
	defer sess.Close()

	sess.log.Info("connection opened")
	for {
		msg, err := conn.ReadMessage(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				sess.log.Info("connection closed by peer")
				return nil
			case ctx.Err() != nil:
				sess.log.Info("connection closed")
				return nil
			default:
				sess.log.WithError(err).Error("connection read failed")
				return fmt.Errorf("read message: %w", err)
			}
		}
		if len(bytes.TrimSpace(msg)) == 0 {
			continue
		}

		reply := sess.Handle(ctx, msg)
		if ctx.Err() != nil {
			sess.log.Info("connection closed, reply discarded")
			return nil
		}
		if reply == nil {
			continue
		}
		if err := conn.WriteMessage(ctx, reply); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			sess.log.WithError(err).Error("connection write failed")
			return fmt.Errorf("write message: %w", err)
		}
	}
}
