// Package errors defines the closed taxonomy of error kinds the instrument
// layer raises. Each kind is a distinct type so callers can discriminate
// with errors.As instead of string matching.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Wrap attaches a cause to err using pkg/errors, for transport failures
// that cross an instrument boundary and need a cause chain preserved.
func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

// Cause unwinds a Wrap'd error to its root cause.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}

// ConnectionError covers port-not-found, version mismatch, permission
// denied, or a transport that closed unexpectedly.
type ConnectionError struct {
	Reason string
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %s", e.Reason)
}

// PermissionRequired is returned by Connect when opening the port fails
// with a permission error (typically a missing udev rule or group
// membership).
type PermissionRequired struct {
	Path string
}

func (e *PermissionRequired) Error() string {
	return fmt.Sprintf("permission required to access %s: install the udev rule or join the dialout/uucp group", e.Path)
}

// ShortRead is raised when fewer bytes arrived than requested before the
// transport's read timeout elapsed.
type ShortRead struct {
	Requested, Got int
}

func (e *ShortRead) Error() string {
	return fmt.Sprintf("short read: requested %d bytes, got %d", e.Requested, e.Got)
}

// MissingAck is raised when the ack byte's bit 0 is clear.
type MissingAck struct {
	Byte byte
}

func (e *MissingAck) Error() string {
	return fmt.Sprintf("missing ack: got status byte 0x%02x", e.Byte)
}

// ArgumentError covers unknown channel names, out-of-range channel counts,
// sample counts, resolutions, gains, or duty cycles.
type ArgumentError struct {
	Parameter string
	Value     interface{}
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument error: %s = %v", e.Parameter, e.Value)
}

// CaptureTimeout is raised when progress did not reach the requested
// sample count before the caller's deadline.
type CaptureTimeout struct {
	SamplesCaptured, SamplesRequested int
}

func (e *CaptureTimeout) Error() string {
	return fmt.Sprintf("capture timeout: got %d of %d requested samples", e.SamplesCaptured, e.SamplesRequested)
}

// FrequencyOutOfRange is raised when no prescaler in the ladder produces a
// wavelength that fits in 16 bits.
type FrequencyOutOfRange struct {
	RequestedHz float64
}

func (e *FrequencyOutOfRange) Error() string {
	return fmt.Sprintf("frequency out of range: %g Hz has no representable (wavelength, prescaler)", e.RequestedHz)
}

// TimegapTooSmall is raised when the requested inter-sample time is below
// the minimum representable for the current capture mode.
type TimegapTooSmall struct {
	RequestedUs, MinimumUs float64
}

func (e *TimegapTooSmall) Error() string {
	return fmt.Sprintf("timegap too small: %g us requested, minimum is %g us", e.RequestedUs, e.MinimumUs)
}

// TimegapTooLarge is raised when the requested inter-event time cannot be
// represented by any prescaler in the ladder.
type TimegapTooLarge struct {
	RequestedUs, MaximumUs float64
}

func (e *TimegapTooLarge) Error() string {
	return fmt.Sprintf("timegap too large: %g us requested, maximum is %g us", e.RequestedUs, e.MaximumUs)
}

// TriggerNotSupportedOnChannel is raised when a trigger is requested on a
// channel not addressable in the current capture mode.
type TriggerNotSupportedOnChannel struct {
	Channel string
}

func (e *TriggerNotSupportedOnChannel) Error() string {
	return fmt.Sprintf("trigger not supported on channel %s in this capture mode", e.Channel)
}

// FirmwareFeatureMissing is raised when an optional command is not
// supported by the connected firmware version.
type FirmwareFeatureMissing struct {
	Feature string
}

func (e *FirmwareFeatureMissing) Error() string {
	return fmt.Sprintf("firmware does not support: %s", e.Feature)
}

// NotSupported is raised when an operation is attempted on a channel that
// structurally cannot support it, e.g. setting gain on a non-PGA input.
type NotSupported struct {
	Operation, Channel string
}

func (e *NotSupported) Error() string {
	return fmt.Sprintf("%s is not supported on channel %s", e.Operation, e.Channel)
}

// InvalidCaptureMode describes a structurally inconsistent
// resolution/timegap combination (e.g. 12-bit capture on 2+ channels). No
// package in this module returns it: the oscilloscope picks the resolution
// itself, so such a combination cannot be requested.
type InvalidCaptureMode struct {
	Reason string
}

func (e *InvalidCaptureMode) Error() string {
	return fmt.Sprintf("invalid capture mode: %s", e.Reason)
}
