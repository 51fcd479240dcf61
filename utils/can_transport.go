package utils

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// ErrReaderClosed is returned by ReadFrame once the socket is gone. A socket
// failure wraps both ErrReaderClosed and the receive error.
var ErrReaderClosed = errors.New("can reader closed")

// CANReader defines the interface for reading CAN frames
type CANReader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

type CANWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

// NewSocketCANWriter dials iface (vcan0, can0, ...) for transmit.
func NewSocketCANWriter(ctx context.Context, iface string) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return &SocketCANWriter{
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
	}, nil
}

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("frame 0x%X: %w", frame.ID, err)
	}
	return w.tx.TransmitFrame(ctx, frame)
}

func (w *SocketCANWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}
