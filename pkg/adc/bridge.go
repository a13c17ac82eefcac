package adc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/vivarium/pkg/sample"
)

// pollInterval is how long Serve waits after a read that returned no data
// (non-blocking USB serial on the board).
const pollInterval = time.Millisecond

// replyError maps a bridge error code to an ADC error.
type replyError struct {
	code byte
	err  error
}

var replyErrors = []replyError{
	{code: 'b', err: ErrBusy},
	{code: 't', err: ErrTimeout},
	{code: 'c', err: ErrInvalidChannel},
}

// Bridge serves conversions from a Peripheral over a line protocol, so a host
// can use the board's converter through Serial.
//
// Protocol, one line per message:
//
//	host:   r<channel>\n
//	bridge: <channel>,<value>\n   or   <channel>,e<code>\n
//
// Error codes: b = busy, t = conversion timeout, c = invalid channel.
// Malformed requests get no reply.
type Bridge struct {
	periph *Peripheral
}

// NewBridge creates a Bridge reading through periph.
func NewBridge(periph *Peripheral) *Bridge {
	return &Bridge{periph: periph}
}

// Handle answers one request line. It returns "" if the line is not a request.
func (b *Bridge) Handle(ctx context.Context, line string) string {
	ch, err := parseRequest(line)
	if err != nil {
		return ""
	}

	var v sample.Raw
	err = b.periph.Do(ctx, func(g *Guard) error {
		var err error
		v, err = g.Read(ctx, ch)
		return err
	})
	return formatReply(ch, v, err)
}

// Serve answers requests read from rw until ctx is cancelled or rw reaches EOF.
func (b *Bridge) Serve(ctx context.Context, rw io.ReadWriter, ready func()) error {
	if ready != nil {
		ready()
	}

	var (
		buf     [64]byte
		pending []byte
	)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := rw.Read(buf[:])
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("bridge: read: %w", err)
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollInterval):
			}
			continue
		}
		pending = append(pending, buf[:n]...)

		for {
			idx := bytes.IndexByte(pending, '\n')
			if idx < 0 {
				break
			}
			line := string(pending[:idx])
			pending = pending[idx+1:]

			reply := b.Handle(ctx, line)
			if reply == "" {
				continue
			}
			if _, err := io.WriteString(rw, reply); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("bridge: write: %w", err)
			}
		}

		// A peer sending garbage without newlines must not grow the buffer forever.
		if len(pending) > len(buf) {
			log.Printf("bridge: dropping %d bytes without a line end", len(pending))
			pending = pending[:0]
		}
	}
}

func formatRequest(ch Channel) string {
	return "r" + strconv.Itoa(int(ch)) + "\n"
}

// parseRequest parses a host request line.
// Format: r<channel>
func parseRequest(line string) (Channel, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "r") {
		return 0, fmt.Errorf("invalid request: %q", line)
	}
	ch, err := strconv.ParseUint(line[1:], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid channel: %w", err)
	}
	return Channel(ch), nil
}

// formatReply encodes a conversion result. Errors without a code of their
// own are reported as a conversion timeout.
func formatReply(ch Channel, v sample.Raw, err error) string {
	prefix := strconv.Itoa(int(ch)) + ","
	if err == nil {
		return prefix + strconv.Itoa(int(v)) + "\n"
	}
	code := byte('t')
	for _, re := range replyErrors {
		if errors.Is(err, re.err) {
			code = re.code
			break
		}
	}
	return prefix + "e" + string(code) + "\n"
}

// reply is one decoded bridge reply. err is the bridge-side conversion
// failure, if any; value is valid only when err is nil.
type reply struct {
	ch    Channel
	value sample.Raw
	err   error
}

// parseReply parses a bridge reply line. The returned error means the line is
// not a reply at all; a well-formed error reply is returned with reply.err set
// so the caller can still match it to its request.
// Format: channel,value or channel,e<code>
// Example: 0,2048
func parseReply(line string) (reply, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return reply{}, fmt.Errorf("invalid reply format: expected 2 comma-separated values, got %d", len(parts))
	}

	ch, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return reply{}, fmt.Errorf("invalid channel: %w", err)
	}

	value := parts[1]
	if strings.HasPrefix(value, "e") {
		if len(value) != 2 {
			return reply{}, fmt.Errorf("invalid error code: %q", value)
		}
		for _, re := range replyErrors {
			if re.code == value[1] {
				return reply{ch: Channel(ch), err: re.err}, nil
			}
		}
		return reply{}, fmt.Errorf("unknown error code: %q", value)
	}

	raw, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		return reply{}, fmt.Errorf("invalid value: %w", err)
	}
	if raw > uint64(sample.MaxRaw) {
		return reply{}, fmt.Errorf("value out of range: %d (max %d)", raw, sample.MaxRaw)
	}

	return reply{ch: Channel(ch), value: sample.Raw(raw)}, nil
}
