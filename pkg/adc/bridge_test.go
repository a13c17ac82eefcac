//go:build !tinygo

package adc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/vivarium/pkg/sample"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Channel
		wantErr bool
	}{
		{name: "reference", line: "r0", want: ChannelReference},
		{name: "die temperature with CR", line: "r4\r", want: ChannelDieTemp},
		{name: "out of range channel parses", line: "r9", want: 9},
		{name: "missing prefix", line: "4", wantErr: true},
		{name: "missing channel", line: "r", wantErr: true},
		{name: "not a number", line: "rx", wantErr: true},
		{name: "too large", line: "r300", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRequest(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatReply(t *testing.T) {
	tests := []struct {
		name string
		ch   Channel
		v    sample.Raw
		err  error
		want string
	}{
		{name: "value", ch: 0, v: 2048, want: "0,2048\n"},
		{name: "busy", ch: 4, err: ErrBusy, want: "4,eb\n"},
		{name: "wrapped invalid channel", ch: 9, err: errors.Join(errors.New("read adc9"), ErrInvalidChannel), want: "9,ec\n"},
		{name: "other errors are timeouts", ch: 0, err: ErrClosed, want: "0,et\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := formatReply(tt.ch, tt.v, tt.err)
			assert.Equal(t, tt.want, line)

			r, err := parseReply(line[:len(line)-1])
			require.NoError(t, err)
			assert.Equal(t, tt.ch, r.ch)
			assert.Equal(t, tt.v, r.value)
			if tt.err == nil {
				assert.NoError(t, r.err)
			} else {
				assert.Error(t, r.err)
			}
		})
	}
}

func TestBridge_Handle(t *testing.T) {
	script := NewScript().
		Push(ChannelReference, Value(2048)).
		Push(ChannelDieTemp, Fail(ErrBusy))
	b := NewBridge(NewPeripheral(script))
	ctx := context.Background()

	assert.Equal(t, "0,2048\n", b.Handle(ctx, "r0"))
	assert.Equal(t, "4,eb\n", b.Handle(ctx, "r4"))
	assert.Equal(t, "9,ec\n", b.Handle(ctx, "r9"))
	assert.Equal(t, "", b.Handle(ctx, "hello"))

	// The invalid channel never reached the converter.
	assert.Equal(t, []Channel{ChannelReference, ChannelDieTemp}, script.Reads())
}

func TestBridge_Serve(t *testing.T) {
	script := NewScript().Push(ChannelReference, Value(100), Value(200))
	b := NewBridge(NewPeripheral(script))

	conn := &fakeConn{}
	conn.in.WriteString("r0\ngarbage\nr0\nr7\n")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	readyCalled := false
	err := b.Serve(ctx, conn, func() { readyCalled = true })
	require.NoError(t, err)
	assert.True(t, readyCalled)
	assert.Equal(t, "0,100\n0,200\n7,ec\n", conn.out.String())
}

func TestBridge_ServeDropsUnterminatedInput(t *testing.T) {
	b := NewBridge(NewPeripheral(NewScript().Push(ChannelReference, Value(1))))

	conn := &fakeConn{}
	for i := 0; i < 10; i++ {
		conn.in.WriteString("xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")
	}
	conn.in.WriteString("\nr0\n")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, b.Serve(ctx, conn, nil))
	assert.Equal(t, "0,1\n", conn.out.String())
}

func TestBridge_SerialRoundTrip(t *testing.T) {
	script := NewScript().
		Push(ChannelReference, Value(1234), Fail(ErrBusy), Value(1235)).
		Push(ChannelDieTemp, Fail(ErrTimeout), Value(876)).
		Push(3, Fail(ErrInvalidChannel))
	b := NewBridge(NewPeripheral(script))

	host, board := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() {
		served <- b.Serve(ctx, board, nil)
	}()

	s := NewSerial("pipe", 0, time.Second)
	s.conn = host

	v, err := s.Read(ctx, ChannelReference)
	require.NoError(t, err)
	assert.Equal(t, sample.Raw(1234), v)

	_, err = s.Read(ctx, ChannelDieTemp)
	assert.ErrorIs(t, err, ErrTimeout)

	v, err = s.Read(ctx, ChannelDieTemp)
	require.NoError(t, err)
	assert.Equal(t, sample.Raw(876), v)

	// Bridge-side errors arrive as the same sentinels, without waiting out the timeout.
	start := time.Now()
	_, err = s.Read(ctx, ChannelReference)
	assert.ErrorIs(t, err, ErrBusy)

	// Rejected by the board's converter.
	_, err = s.Read(ctx, 3)
	assert.ErrorIs(t, err, ErrInvalidChannel)

	// Rejected by the board's Peripheral before any conversion.
	_, err = s.Read(ctx, 9)
	assert.ErrorIs(t, err, ErrInvalidChannel)
	assert.Less(t, time.Since(start), time.Second)

	// The link is still in step after the errors.
	v, err = s.Read(ctx, ChannelReference)
	require.NoError(t, err)
	assert.Equal(t, sample.Raw(1235), v)

	cancel()
	require.NoError(t, s.Close())

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bridge did not stop")
	}
}
