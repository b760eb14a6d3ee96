package magnetometer

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrBusBusy = errors.New("I2C engine is busy (command not completed)")
var ErrEmptyTransaction = errors.New("transaction has no messages")
var ErrEmptyMessage = errors.New("message has zero length")
var ErrNotBound = errors.New("bus has no bound device address")
var ErrAddressMismatch = errors.New("message address differs from bound address")
var ErrUnsupportedTransaction = errors.New("transaction shape not supported by this bus")

// Message is a single directional transfer to or from one device.
// For writes Buf holds the register address followed by the payload,
// for reads it is the destination and its length is the read size.
type Message struct {
	Addr uint16
	Read bool
	Buf  []byte
}

// WriteMessage builds a write message for the given address.
func WriteMessage(addr uint16, buf []byte) Message {
	return Message{Addr: addr, Buf: buf}
}

// ReadMessage builds a read message with a freshly allocated buffer of size n.
func ReadMessage(addr uint16, n int) Message {
	return Message{Addr: addr, Read: true, Buf: make([]byte, n)}
}

func (m Message) String() string {
	dir := "W"
	if m.Read {
		dir = "R"
	}
	return fmt.Sprintf("%s@%#x[% x]", dir, m.Addr, m.Buf)
}

// Transactor submits an ordered list of messages as one atomic transfer.
// Either the whole sequence is reported as submitted or an error is returned.
type Transactor interface {
	Transfer(ctx context.Context, msgs []Message) error
}

// Bus is an open bus handle that can be bound to one device address.
type Bus interface {
	Transactor
	Bind(addr uint16) error
	io.Closer
}

// ValidateMessages checks the invariants shared by all bus backends.
func ValidateMessages(msgs []Message) error {
	if len(msgs) == 0 {
		return ErrEmptyTransaction
	}
	for i, msg := range msgs {
		if len(msg.Buf) == 0 {
			return fmt.Errorf("message %d: %w", i, ErrEmptyMessage)
		}
	}
	return nil
}

// OpenError is returned when a bus device cannot be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("could not open i2c bus %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// BindError is returned when the bus rejects the device address selection.
type BindError struct {
	Addr uint16
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("could not bind i2c address %#x: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// TransferError is returned when a transaction is rejected or the device
// does not acknowledge. Err carries the underlying system error.
type TransferError struct {
	Addr uint16
	Msgs int
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("i2c transaction of %d message(s) to %#x failed: %v", e.Msgs, e.Addr, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// NewTransferError wraps err for the given transaction.
func NewTransferError(msgs []Message, err error) *TransferError {
	te := &TransferError{Msgs: len(msgs), Err: err}
	if len(msgs) > 0 {
		te.Addr = msgs[0].Addr
	}
	return te
}
