// Package handlers frames fuzz protocol messages on a stream: every message is
// its length as a little-endian uint32 followed by that many content bytes.
package handlers

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxMessageSize bounds the content length accepted from the peer.
const MaxMessageSize = 64 << 20

var ErrMessageTooLarge = errors.New("message too large")

// Message is one framed message.
type Message struct {
	Size    uint32
	Content []byte
}

type result[T any] struct {
	value T
	err   error
}

// await runs fn in the background and returns its result, or the context
// error if the context ends first. The stream should be closed by the caller
// in that case so fn can return.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	done := make(chan result[T], 1)
	go func() {
		v, err := fn()
		done <- result[T]{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// WriteMessageWithContext writes the length prefix and the content as a single write.
func WriteMessageWithContext(ctx context.Context, w io.Writer, content []byte) error {
	if len(content) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(content))
	}
	frame := make([]byte, 4+len(content))
	binary.LittleEndian.PutUint32(frame, uint32(len(content)))
	copy(frame[4:], content)

	_, err := await(ctx, func() (struct{}, error) {
		if _, err := w.Write(frame); err != nil {
			return struct{}{}, fmt.Errorf("failed to write message: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// ReadMessageWithContext reads one framed message. A stream that ends before
// the length prefix yields an error wrapping io.EOF.
func ReadMessageWithContext(ctx context.Context, r io.Reader) (*Message, error) {
	return await(ctx, func() (*Message, error) {
		var prefix [4]byte
		if _, err := io.ReadFull(r, prefix[:]); err != nil {
			return nil, fmt.Errorf("failed to read message size: %w", err)
		}
		size := binary.LittleEndian.Uint32(prefix[:])
		if size > MaxMessageSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
		}

		content := make([]byte, size)
		if _, err := io.ReadFull(r, content); err != nil {
			return nil, fmt.Errorf("failed to read message content: %w", err)
		}
		return &Message{Size: size, Content: content}, nil
	})
}
