//go:build !tinygo

package adc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/vivarium/pkg/sample"
)

const (
	// DefaultBaudRate is the serial ADC bridge baud rate.
	DefaultBaudRate = 115200
	// DefaultTimeout is the default per-conversion reply timeout.
	DefaultTimeout = 500 * time.Millisecond
)

// Ensure Serial implements Converter.
var _ Converter = (*Serial)(nil)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Serial is a converter behind a serial ADC bridge (see Bridge for the
// protocol). Replies carry only the channel, so a late answer to a timed out
// request is discarded only when it names a different channel. A late answer
// for the same channel is taken as the reply to the current request; it is
// still a conversion of that channel, just an older one.
type Serial struct {
	port     string
	baudRate int
	timeout  time.Duration

	mu      sync.Mutex
	conn    io.ReadWriteCloser
	pending []byte
	buf     [64]byte
}

// NewSerial creates a Serial converter for the given port. Call Open before reading.
func NewSerial(port string, baudRate int, timeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Serial{
		port:     port,
		baudRate: baudRate,
		timeout:  timeout,
	}
}

// Open opens the serial port.
func (s *Serial) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return fmt.Errorf("already open")
	}

	port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}
	// A read that returns no data within the timeout reports (0, nil).
	if err := port.SetReadTimeout(s.timeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", s.port, err)
	}

	s.conn = port
	s.pending = s.pending[:0]
	return nil
}

// Read requests one conversion from the bridge and waits for its reply.
func (s *Serial) Read(ctx context.Context, ch Channel) (sample.Raw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return 0, ErrClosed
	}

	if _, err := io.WriteString(s.conn, formatRequest(ch)); err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}

	deadline := time.Now().Add(s.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}

		line, err := s.readLine()
		if err != nil {
			return 0, err
		}
		if line == "" {
			continue
		}

		r, err := parseReply(line)
		if err != nil {
			log.Printf("adc: failed to parse reply '%s': %v", line, err)
			continue
		}
		if r.ch != ch {
			// Stale reply to an earlier request on another channel.
			continue
		}
		if r.err != nil {
			return 0, fmt.Errorf("bridge %s: %w", ch, r.err)
		}
		return r.value, nil
	}
}

// Close closes the serial port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// readLine returns the next complete line without its terminator.
// A read that times out with no data yields ErrTimeout.
func (s *Serial) readLine() (string, error) {
	for {
		if idx := bytes.IndexByte(s.pending, '\n'); idx >= 0 {
			line := strings.TrimSpace(string(s.pending[:idx]))
			s.pending = s.pending[idx+1:]
			return line, nil
		}

		n, err := s.conn.Read(s.buf[:])
		if err != nil {
			return "", fmt.Errorf("failed to read from serial port: %w", err)
		}
		if n == 0 {
			return "", ErrTimeout
		}
		s.pending = append(s.pending, s.buf[:n]...)
	}
}
