package transport

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PortInfo describes one enumerated serial port candidate.
type PortInfo struct {
	Path     string
	VID, PID uint16
}

// ListPorts enumerates serial ports and their USB VID/PID, for Connect's
// autodetect path (§6.2). This reads the sysfs tty device tree directly
// rather than depending on a port-enumeration library: none of the
// retrieved examples import one (gousb is libusb bulk/control transfer,
// not applicable to VID/PID discovery of a CDC-ACM tty), so this is a
// deliberate stdlib-only component.
func ListPorts() ([]PortInfo, error) {
	const sysfsTTY = "/sys/class/tty"

	entries, err := os.ReadDir(sysfsTTY)
	if err != nil {
		// Non-Linux or no sysfs: autodetect simply finds nothing, it is
		// not a hard error to have zero ports.
		return nil, nil
	}

	var ports []PortInfo
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "ttyACM") && !strings.HasPrefix(name, "ttyUSB") {
			continue
		}
		devPath := filepath.Join(sysfsTTY, name, "device")
		vid, pid, ok := readUSBIdentifier(devPath)
		if !ok {
			continue
		}
		ports = append(ports, PortInfo{
			Path: filepath.Join("/dev", name),
			VID:  vid,
			PID:  pid,
		})
	}
	return ports, nil
}

// readUSBIdentifier resolves a tty's sysfs device link and checks that
// directory and up to three of its parents for idVendor/idProduct files,
// which live on the USB device node above the interface.
func readUSBIdentifier(devPath string) (vid, pid uint16, ok bool) {
	dir, err := filepath.EvalSymlinks(devPath)
	if err != nil {
		return 0, 0, false
	}
	for i := 0; i < 4; i++ {
		v, vErr := readHex(filepath.Join(dir, "idVendor"))
		p, pErr := readHex(filepath.Join(dir, "idProduct"))
		if vErr == nil && pErr == nil {
			return v, p, true
		}
		dir = filepath.Join(dir, "..")
	}
	return 0, 0, false
}

func readHex(path string) (uint16, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
