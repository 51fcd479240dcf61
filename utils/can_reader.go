//go:build linux || darwin
// +build linux darwin

package utils

import (
	"context"
	"fmt"
	"net"
	"sync"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// SocketCANReader implements CANReader using Einride's socketcan. A single
// goroutine owns the receiver and hands frames over a channel, so a canceled
// ReadFrame never leaves a blocked read behind.
type SocketCANReader struct {
	conn   net.Conn
	frames chan can.Frame
	done   chan struct{}
	stop   chan struct{}

	mu     sync.Mutex
	err    error
	closed bool
}

// NewSocketCANReader creates a new SocketCAN reader
func NewSocketCANReader(ctx context.Context, ifname string) (*SocketCANReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", ifname)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}

	r := &SocketCANReader{
		conn:   conn,
		frames: make(chan can.Frame, 64),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go r.receive(socketcan.NewReceiver(conn))
	return r, nil
}

func (r *SocketCANReader) receive(recv *socketcan.Receiver) {
	defer close(r.done)
	for recv.Receive() {
		if recv.HasErrorFrame() {
			continue
		}
		select {
		case r.frames <- recv.Frame():
		case <-r.stop:
			return
		}
	}
	r.mu.Lock()
	r.err = recv.Err()
	r.mu.Unlock()
}

// ReadFrame returns the next frame, blocking until one arrives, the context
// ends or the socket closes.
func (r *SocketCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f := <-r.frames:
		return f, nil
	case <-r.done:
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.err != nil {
			return can.Frame{}, fmt.Errorf("%w: %w", ErrReaderClosed, r.err)
		}
		return can.Frame{}, ErrReaderClosed
	}
}

// Close closes the CAN socket and stops the receive goroutine.
func (r *SocketCANReader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.stop)
	r.mu.Unlock()
	return r.conn.Close()
}
