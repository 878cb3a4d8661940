// Package buffer provides the sample-buffer façade (§4.2): three
// operations against the device's single linear 10000-slot ADC buffer,
// chunked so no single round trip can overflow the device's UART FIFO.
//
// The original exposed this as ADCBufferMixin, inherited by whichever
// instrument needed it. Here it is a small value type wrapping a
// *transport.Transport, held by composition instead of inheritance (§9).
package buffer

import (
	"runtime"

	pslaberrors "github.com/fossasia/pslab-go/errors"
	"github.com/fossasia/pslab-go/protocol"
	"github.com/fossasia/pslab-go/transport"
)

// chunkSize is the largest number of samples fetched or filled in one
// round trip, matching buffer.py's chunked ADCBufferMixin.
const chunkSize = 128

// Buffer is the sample-buffer façade over one Transport.
type Buffer struct {
	T *transport.Transport
}

// New returns a Buffer façade over t.
func New(t *transport.Transport) Buffer {
	return Buffer{T: t}
}

// Fetch retrieves `samples` u16 values starting at `offset` in the
// device's sample buffer, chunked at 128 samples per round trip.
func (b Buffer) Fetch(samples, offset int) ([]uint16, error) {
	if offset+samples > protocol.MaxSamples {
		return nil, &pslaberrors.ArgumentError{Parameter: "offset+samples", Value: offset + samples}
	}

	out := make([]uint16, 0, samples)
	remaining := samples
	pos := offset
	for remaining > 0 {
		n := remaining
		if n > chunkSize {
			n = chunkSize
		}
		chunk, err := b.fetchChunk(n, pos)
		if err != nil {
			return out, err
		}
		out = append(out, chunk...)
		pos += n
		remaining -= n
		runtime.Gosched()
	}
	return out, nil
}

func (b Buffer) fetchChunk(samples, offset int) ([]uint16, error) {
	if err := b.T.SendU8(protocol.COMMON); err != nil {
		return nil, err
	}
	if err := b.T.SendU8(protocol.RetrieveBuffer); err != nil {
		return nil, err
	}
	if err := b.T.SendU16(uint16(offset)); err != nil {
		return nil, err
	}
	if err := b.T.SendU16(uint16(samples)); err != nil {
		return nil, err
	}

	out := make([]uint16, samples)
	for i := 0; i < samples; i++ {
		v, err := b.T.GetU16()
		if err != nil {
			return out[:i], err
		}
		out[i] = v
	}
	if _, err := b.T.GetAck(); err != nil {
		return out, err
	}
	return out, nil
}

// Clear zeroes `samples` slots starting at `offset`. Unlike Fetch/Fill,
// this is a single round trip (matching buffer.py's clear_buffer, which
// is never chunked since the device clears in place without returning
// data).
func (b Buffer) Clear(samples, offset int) error {
	if offset+samples > protocol.MaxSamples {
		return &pslaberrors.ArgumentError{Parameter: "offset+samples", Value: offset + samples}
	}
	if err := b.T.SendU8(protocol.COMMON); err != nil {
		return err
	}
	if err := b.T.SendU8(protocol.ClearBuffer); err != nil {
		return err
	}
	if err := b.T.SendU16(uint16(offset)); err != nil {
		return err
	}
	if err := b.T.SendU16(uint16(samples)); err != nil {
		return err
	}
	_, err := b.T.GetAck()
	return err
}

// Fill writes data into the buffer starting at offset, chunked at 128
// samples per round trip.
func (b Buffer) Fill(data []uint16, offset int) error {
	if offset+len(data) > protocol.MaxSamples {
		return &pslaberrors.ArgumentError{Parameter: "offset+len(data)", Value: offset + len(data)}
	}

	pos := offset
	for start := 0; start < len(data); start += chunkSize {
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := b.fillChunk(data[start:end], pos); err != nil {
			return err
		}
		pos += end - start
		runtime.Gosched()
	}
	return nil
}

func (b Buffer) fillChunk(data []uint16, offset int) error {
	if err := b.T.SendU8(protocol.COMMON); err != nil {
		return err
	}
	if err := b.T.SendU8(protocol.FillBuffer); err != nil {
		return err
	}
	if err := b.T.SendU16(uint16(offset)); err != nil {
		return err
	}
	if err := b.T.SendU16(uint16(len(data))); err != nil {
		return err
	}
	for _, v := range data {
		if err := b.T.SendU16(v); err != nil {
			return err
		}
	}
	_, err := b.T.GetAck()
	return err
}
