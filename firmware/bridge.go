//go:build tinygo

package main

import (
	"io"
	"machine"
)

var _ io.ReadWriter = usbSerial{}

// usbSerial adapts the board's serial port to io.ReadWriter. Read never
// blocks: with nothing buffered it returns (0, nil).
type usbSerial struct {
	port machine.Serialer
}

func (u usbSerial) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && u.port.Buffered() > 0 {
		c, err := u.port.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = c
		n++
	}
	return n, nil
}

func (u usbSerial) Write(p []byte) (int, error) {
	return u.port.Write(p)
}
