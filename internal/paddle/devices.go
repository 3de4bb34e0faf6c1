package paddle

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// DeviceInfo describes an input device listed by the kernel.
type DeviceInfo struct {
	Name string
	Path string
}

// ListDevices returns the input devices with key capabilities, from
// /proc/bus/input/devices. It returns ErrNotAvailable where that file does
// not exist.
func ListDevices() ([]DeviceInfo, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotAvailable
		}
		return nil, err
	}
	defer f.Close()
	return parseDeviceList(f)
}

// parseDeviceList reads the blank-line separated blocks of
// /proc/bus/input/devices.
func parseDeviceList(r io.Reader) ([]DeviceInfo, error) {
	var (
		devices []DeviceInfo
		cur     DeviceInfo
		hasKeys bool
	)

	flush := func() {
		if hasKeys && cur.Path != "" {
			devices = append(devices, cur)
		}
		cur = DeviceInfo{}
		hasKeys = false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "N: Name="):
			cur.Name = strings.Trim(strings.TrimPrefix(line, "N: Name="), `"`)
		case strings.HasPrefix(line, "H: Handlers="):
			for _, part := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				if strings.HasPrefix(part, "event") {
					cur.Path = "/dev/input/" + part
				}
			}
		case strings.HasPrefix(line, "B: KEY="):
			hasKeys = strings.Trim(strings.TrimPrefix(line, "B: KEY="), "0 ") != ""
		}
	}
	flush()
	return devices, scanner.Err()
}
