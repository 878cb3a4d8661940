package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// TrafficEntry is one recorded request/response pair: Tx is the exact
// byte sequence expected to be written, Rx is the bytes to make available
// for the following read(s). Grounded on serial_handler.py's MockHandler
// and its RECORDED_TRAFFIC iterator, used there for record/replay tests.
type TrafficEntry struct {
	Tx, Rx []byte
}

// scriptedConn is an io.ReadWriteCloser that replays a fixed traffic
// script. Writes accumulate in outbuf since a logical request is usually
// issued as several small Send calls rather than one; once outbuf holds at
// least as many bytes as the next entry's Tx, that prefix is compared and
// consumed and the entry's Rx becomes available to Read.
type scriptedConn struct {
	entries []TrafficEntry
	pos     int
	outbuf  bytes.Buffer
	inbuf   bytes.Buffer
}

func (c *scriptedConn) Write(p []byte) (int, error) {
	c.outbuf.Write(p)
	for c.pos < len(c.entries) {
		entry := c.entries[c.pos]
		if c.outbuf.Len() < len(entry.Tx) {
			break
		}
		got := c.outbuf.Next(len(entry.Tx))
		if !bytes.Equal(entry.Tx, got) {
			return 0, fmt.Errorf("mock transport: write mismatch at entry %d: expected %x, got %x", c.pos, entry.Tx, got)
		}
		c.inbuf.Write(entry.Rx)
		c.pos++
	}
	if c.outbuf.Len() == 0 && c.pos >= len(c.entries) {
		return len(p), nil
	}
	if c.pos >= len(c.entries) && c.outbuf.Len() > 0 {
		return 0, fmt.Errorf("mock transport: unexpected trailing write %x, no more scripted entries", c.outbuf.Bytes())
	}
	return len(p), nil
}

func (c *scriptedConn) Read(p []byte) (int, error) {
	if c.inbuf.Len() == 0 {
		return 0, io.EOF
	}
	return c.inbuf.Read(p)
}

func (c *scriptedConn) Close() error { return nil }

// NewMock returns a Transport pre-connected to a scripted fake serial
// port, for deterministic unit tests that don't need real hardware. The
// version string is stored directly; no version query is sent or read.
func NewMock(version string, entries []TrafficEntry) *Transport {
	conn := &scriptedConn{entries: entries}
	t := &Transport{
		Port:    "mock",
		Baud:    defaultBaud,
		Timeout: defaultTimeout,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		version: version,
	}
	return t
}
