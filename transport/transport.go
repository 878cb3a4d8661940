// Package transport carries typed little-endian integers and raw byte
// blocks to the PSLab device over a serial link, and provides the single
// handshake primitive (GetAck) every other package builds on.
//
// It is adapted from golab/comm's RemoteDevice: the embeddable struct, an
// embedded mutex, and backoff-based reconnect are kept:
// the terminator-framed ASCII/SCPI transaction model is replaced with the
// PSLab's byte-counted binary framing (§6.1), since there is no terminator
// byte in this protocol.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"

	pslaberrors "github.com/fossasia/pslab-go/errors"
	"github.com/fossasia/pslab-go/protocol"
)

// knownVersionMarkers are substrings that must appear in the firmware's
// version string for Connect to accept the device.
var knownVersionMarkers = []string{"PSLab", "CSpark"}

// usbIdentifiers are the known (VID, PID) pairs for the two PSLab
// hardware generations.
type usbIdentifier struct{ VID, PID uint16 }

var usbIdentifiers = []usbIdentifier{
	{0x04D8, 0x00DF},
	{0x10C4, 0xEA60},
}

const (
	defaultBaud    = 1_000_000
	defaultTimeout = 1 * time.Second
	pollInterval   = 20 * time.Millisecond
)

// Transport is a byte-oriented full-duplex link to one PSLab device. It is
// owned exclusively by one Session (I7). The embedded mutex serialises
// each individual Read and Write; a request made of several calls is not
// held under one lock, so concurrent callers can interleave their bytes
// and break ack discipline (I6). Callers issue requests one at a time.
type Transport struct {
	sync.Mutex

	Port    string
	Baud    int
	Timeout time.Duration

	conn    io.ReadWriteCloser
	reader  *bufio.Reader
	version string

	logging bool
	log     []byte
}

// New returns an unconnected Transport. Call Connect before use.
func New(port string, baud int, timeout time.Duration) *Transport {
	if baud == 0 {
		baud = defaultBaud
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Transport{Port: port, Baud: baud, Timeout: timeout}
}

// Connected reports whether the transport currently holds an open
// connection.
func (t *Transport) Connected() bool {
	t.Lock()
	defer t.Unlock()
	return t.conn != nil
}

// Version returns the firmware version string learned at Connect.
func (t *Transport) Version() string {
	t.Lock()
	defer t.Unlock()
	return t.version
}

// Connect opens the link and queries the firmware version string. If
// Port is empty, it autodetects by matching VID:PID against enumerated
// serial ports (§6.2). It retries the open with exponential backoff,
// mirroring comm.RemoteDevice.Open, since some USB-serial adapters need a
// short settle time after being plugged in.
func (t *Transport) Connect() error {
	if t.Connected() {
		return nil
	}

	candidates := []string{t.Port}
	if t.Port == "" {
		ports, err := ListPorts()
		if err != nil {
			return &pslaberrors.ConnectionError{Reason: err.Error()}
		}
		candidates = candidates[:0]
		for _, p := range ports {
			if matchesKnownIdentifier(p) {
				candidates = append(candidates, p.Path)
			}
		}
		if len(candidates) == 0 {
			return &pslaberrors.ConnectionError{Reason: "no PSLab device found among enumerated serial ports"}
		}
	}

	var lastErr error
	for _, port := range candidates {
		if err := t.tryConnect(port); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate ports to try")
	}
	var perm *pslaberrors.PermissionRequired
	if errors.As(lastErr, &perm) {
		return perm
	}
	return &pslaberrors.ConnectionError{Reason: lastErr.Error()}
}

func (t *Transport) tryConnect(port string) error {
	op := func() error {
		cfg := &serial.Config{Name: port, Baud: t.Baud, ReadTimeout: t.Timeout}
		conn, err := serial.OpenPort(cfg)
		if err != nil {
			errS := strings.ToLower(err.Error())
			if strings.Contains(errS, "permission") {
				return backoff.Permanent(&pslaberrors.PermissionRequired{Path: port})
			}
			return err
		}
		t.Lock()
		t.conn = conn
		t.reader = bufio.NewReader(conn)
		t.Unlock()
		return nil
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock,
	})
	if err != nil {
		return err
	}

	version, vErr := t.GetVersion()
	if vErr != nil || !containsKnownMarker(version) {
		t.Lock()
		if t.conn != nil {
			t.conn.Close()
			t.conn = nil
			t.reader = nil
		}
		t.Unlock()
		if vErr != nil {
			return vErr
		}
		return fmt.Errorf("device at %s did not report a PSLab/CSpark version string", port)
	}

	t.Lock()
	t.Port = port
	t.version = version
	t.Unlock()
	log.Printf("pslab: connected to %q on %s", version, port)
	return nil
}

// Disconnect closes the underlying connection. Idempotent.
func (t *Transport) Disconnect() error {
	t.Lock()
	defer t.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	return err
}

// Reconnect disconnects and connects again, reusing prior parameters.
// A desynchronised protocol (ShortRead, MissingAck) is unrecoverable in
// place; Reconnect is the only documented way back to a usable Session.
func (t *Transport) Reconnect() error {
	if err := t.Disconnect(); err != nil {
		log.Printf("pslab: error while disconnecting before reconnect: %v", err)
	}
	return t.Connect()
}

// SendU8 packs and writes a single byte.
func (t *Transport) SendU8(v byte) error { return t.Write([]byte{v}) }

// SendU16 packs v little-endian and writes it.
func (t *Transport) SendU16(v uint16) error {
	return t.Write(protocol.PutU16(v))
}

// SendU32 packs v little-endian and writes it.
func (t *Transport) SendU32(v uint32) error {
	return t.Write(protocol.PutU32(v))
}

// GetU8 reads and returns a single byte.
func (t *Transport) GetU8() (byte, error) {
	b, err := t.Read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// GetU16 reads 2 bytes and unpacks them little-endian.
func (t *Transport) GetU16() (uint16, error) {
	b, err := t.Read(2)
	if err != nil {
		return 0, err
	}
	return protocol.GetU16(b), nil
}

// GetU32 reads 4 bytes and unpacks them little-endian.
func (t *Transport) GetU32() (uint32, error) {
	b, err := t.Read(4)
	if err != nil {
		return 0, err
	}
	return protocol.GetU32(b), nil
}

// GetAck reads one byte and treats bit 0 as the success flag (§6.1). The
// full byte is returned so callers needing side-channel status bits
// (I2C ack/collision, radio errors) can inspect it.
func (t *Transport) GetAck() (byte, error) {
	b, err := t.GetU8()
	if err != nil {
		return 0, err
	}
	if b&0x01 == 0 {
		return b, &pslaberrors.MissingAck{Byte: b}
	}
	return b, nil
}

// Read reads exactly n bytes, failing with ShortRead if fewer arrive
// before the transport's timeout elapses.
func (t *Transport) Read(n int) ([]byte, error) {
	t.Lock()
	defer t.Unlock()
	if t.conn == nil {
		return nil, &pslaberrors.ConnectionError{Reason: "not connected"}
	}
	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(t.Timeout)
	for got < n {
		m, err := t.reader.Read(buf[got:])
		got += m
		if err != nil {
			break
		}
		if got >= n || time.Now().After(deadline) {
			break
		}
	}
	t.writeLog(buf[:got], "RX")
	if got < n {
		return buf[:got], &pslaberrors.ShortRead{Requested: n, Got: got}
	}
	return buf, nil
}

// Write writes data to the connection.
func (t *Transport) Write(data []byte) error {
	t.Lock()
	defer t.Unlock()
	if t.conn == nil {
		return &pslaberrors.ConnectionError{Reason: "not connected"}
	}
	_, err := t.conn.Write(data)
	t.writeLog(data, "TX")
	return err
}

// writeLog appends to the traffic log if logging is enabled. Must be
// called with the mutex held.
func (t *Transport) writeLog(data []byte, direction string) {
	if !t.logging {
		return
	}
	t.log = append(t.log, []byte(direction)...)
	t.log = append(t.log, data...)
	t.log = append(t.log, []byte("STOP")...)
}

// EnableLogging turns on traffic logging (TX/RX/STOP delimited), used for
// record/replay testing.
func (t *Transport) EnableLogging(enabled bool) {
	t.Lock()
	defer t.Unlock()
	t.logging = enabled
}

// TrafficLog returns a copy of the accumulated traffic log.
func (t *Transport) TrafficLog() []byte {
	t.Lock()
	defer t.Unlock()
	out := make([]byte, len(t.log))
	copy(out, t.log)
	return out
}

// GetVersion queries the firmware for its version string.
func (t *Transport) GetVersion() (string, error) {
	// Connect calls this right after opening the port; it goes through
	// Write and readLine like any other request.
	if err := t.Write([]byte{protocol.COMMON, protocol.GetVersion}); err != nil {
		return "", err
	}
	return t.readLine()
}

// readLine reads until '\n' or the timeout elapses, used only for the
// version query which the firmware terminates with a newline.
func (t *Transport) readLine() (string, error) {
	t.Lock()
	defer t.Unlock()
	if t.conn == nil {
		return "", &pslaberrors.ConnectionError{Reason: "not connected"}
	}
	line, err := t.reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		t.writeLog(line, "RX")
		return "", err
	}
	t.writeLog(line, "RX")
	return strings.TrimRight(string(line), "\r\n"), nil
}

// WaitForData polls every 20 ms until data is available to read or
// timeout elapses, returning whether any data arrived. tarm/serial has no
// in_waiting equivalent, so this checks the bufio.Reader's already-primed
// buffer rather than the OS-level receive queue; callers that need to
// observe the very first byte of an unsolicited response should prefer a
// direct Read with a short Timeout instead.
func (t *Transport) WaitForData(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		t.Lock()
		reader := t.reader
		t.Unlock()
		if reader == nil {
			return false
		}
		if reader.Buffered() > 0 {
			return true
		}
		time.Sleep(pollInterval)
	}
	return false
}

func containsKnownMarker(version string) bool {
	for _, marker := range knownVersionMarkers {
		if strings.Contains(version, marker) {
			return true
		}
	}
	return false
}

func matchesKnownIdentifier(p PortInfo) bool {
	for _, id := range usbIdentifiers {
		if p.VID == id.VID && p.PID == id.PID {
			return true
		}
	}
	return false
}
