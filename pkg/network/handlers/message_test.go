package handlers

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

// slowReader delays every read.
type slowReader struct {
	r     io.Reader
	delay time.Duration
}

func (s slowReader) Read(p []byte) (int, error) {
	time.Sleep(s.delay)
	return s.r.Read(p)
}

func frame(size uint32, content []byte) *bytes.Buffer {
	buffer := &bytes.Buffer{}
	_ = binary.Write(buffer, binary.LittleEndian, size)
	buffer.Write(content)
	return buffer
}

func TestWriteMessageWithContext(t *testing.T) {
	buffer := &bytes.Buffer{}
	require.NoError(t, WriteMessageWithContext(context.Background(), buffer, []byte("test message")))
	assert.Equal(t, uint32(12), binary.LittleEndian.Uint32(buffer.Bytes()[:4]))
	assert.Equal(t, []byte("test message"), buffer.Bytes()[4:])

	err := WriteMessageWithContext(context.Background(), failingWriter{}, []byte("x"))
	assert.ErrorContains(t, err, "failed to write message")

	err = WriteMessageWithContext(context.Background(), &bytes.Buffer{}, make([]byte, MaxMessageSize+1))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestReadMessageWithContext(t *testing.T) {
	testCases := []struct {
		name    string
		input   io.Reader
		content []byte
		err     error
		errText string
	}{{
		name:    "message",
		input:   frame(12, []byte("test message")),
		content: []byte("test message"),
	}, {
		name:    "empty message",
		input:   frame(0, nil),
		content: []byte{},
	}, {
		name:  "closed stream",
		input: &bytes.Buffer{},
		err:   io.EOF,
	}, {
		name:    "short size",
		input:   bytes.NewReader([]byte{1, 0}),
		errText: "failed to read message size",
	}, {
		name:    "short content",
		input:   frame(10, []byte("hello")),
		err:     io.ErrUnexpectedEOF,
		errText: "failed to read message content",
	}, {
		name:  "too large",
		input: frame(MaxMessageSize+1, nil),
		err:   ErrMessageTooLarge,
	}}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ReadMessageWithContext(context.Background(), tc.input)
			if tc.err == nil && tc.errText == "" {
				require.NoError(t, err)
				assert.Equal(t, uint32(len(tc.content)), msg.Size)
				assert.Equal(t, tc.content, msg.Content)
				return
			}
			require.Error(t, err)
			assert.Nil(t, msg)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			}
			if tc.errText != "" {
				assert.ErrorContains(t, err, tc.errText)
			}
		})
	}
}

func TestReadMessageWithContextCancelled(t *testing.T) {
	reader := slowReader{r: frame(4, []byte("slow")), delay: 100 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	msg, err := ReadMessageWithContext(ctx, reader)
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReadWriteMessages(t *testing.T) {
	messages := [][]byte{
		[]byte("first message"),
		[]byte("second message"),
		[]byte("third message with longer content"),
	}
	buffer := &bytes.Buffer{}
	ctx := context.Background()
	for _, content := range messages {
		require.NoError(t, WriteMessageWithContext(ctx, buffer, content))
	}
	for _, expected := range messages {
		msg, err := ReadMessageWithContext(ctx, buffer)
		require.NoError(t, err)
		assert.Equal(t, expected, msg.Content)
	}
	assert.Zero(t, buffer.Len())
}
