package common

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SnapshotConfig holds the parts of snapshot.ini the configuration tools use.
type SnapshotConfig struct {
	Version     string
	Description string
	DeviceList  []string
}

// DeviceIni is a single device description from a trace snapshot.
// Regs keeps the register values by upper-case name; Order keeps file order.
type DeviceIni struct {
	Name  string
	Class string
	Type  string
	Regs  map[string]uint64
	Order []string
}

// ParseSnapshotIni parses snapshot.ini from a snapshot directory
// (ARM Debug and Trace Snapshot File Format).
func ParseSnapshotIni(snapshotDir string) (SnapshotConfig, error) {
	path := filepath.Join(snapshotDir, "snapshot.ini")
	file, err := os.Open(path)
	if err != nil {
		return SnapshotConfig{}, fmt.Errorf("read snapshot.ini: %w", err)
	}
	defer file.Close()

	cfg := SnapshotConfig{}
	err = scanIni(file, func(section, key, value string) {
		switch section {
		case "snapshot":
			switch strings.ToLower(key) {
			case "version":
				cfg.Version = value
			case "description":
				cfg.Description = value
			}
		case "device_list":
			cfg.DeviceList = append(cfg.DeviceList, value)
		}
	})
	if err != nil {
		return SnapshotConfig{}, fmt.Errorf("read snapshot.ini: %w", err)
	}

	if cfg.Version == "" {
		return SnapshotConfig{}, fmt.Errorf("snapshot.ini missing [snapshot]/version")
	}
	if len(cfg.DeviceList) == 0 {
		return SnapshotConfig{}, fmt.Errorf("no devices found in snapshot.ini")
	}
	return cfg, nil
}

// LoadDevice reads the trace unit description at path. path is either a
// device ini file or a snapshot directory; for a directory the first ETE or
// ETMv4 trace source in device_list is used.
func LoadDevice(path string) (DeviceIni, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return DeviceIni{}, fmt.Errorf("read device ini: %w", err)
	}
	if !fi.IsDir() {
		return ParseDeviceIni(path)
	}
	cfg, err := ParseSnapshotIni(path)
	if err != nil {
		return DeviceIni{}, err
	}
	for _, name := range cfg.DeviceList {
		dev, err := ParseDeviceIni(filepath.Join(path, name))
		if err != nil {
			return DeviceIni{}, fmt.Errorf("%s: %w", name, err)
		}
		if dev.IsTraceUnit() {
			return dev, nil
		}
	}
	return DeviceIni{}, fmt.Errorf("%s: no ETE or ETM4 trace source in device_list", path)
}

// IsTraceUnit reports whether the device is an ETE or ETMv4 trace source.
func (d DeviceIni) IsTraceUnit() bool {
	if !strings.EqualFold(d.Class, "trace_source") {
		return false
	}
	t := strings.ToUpper(d.Type)
	return strings.HasPrefix(t, "ETE") || strings.HasPrefix(t, "ETM4") || strings.HasPrefix(t, "ETMV4")
}

// ParseDeviceIni reads a device ini file. Register keys may carry an
// annotation in brackets, e.g. "TRCIDR4(0x1F0)=0x00110000".
func ParseDeviceIni(path string) (DeviceIni, error) {
	file, err := os.Open(path)
	if err != nil {
		return DeviceIni{}, fmt.Errorf("read device ini: %w", err)
	}
	defer file.Close()
	return ReadDeviceIni(file)
}

// ReadDeviceIni parses device ini content from r.
func ReadDeviceIni(r io.Reader) (DeviceIni, error) {
	dev := DeviceIni{Regs: map[string]uint64{}}
	var parseErr error
	err := scanIni(r, func(section, key, value string) {
		switch section {
		case "device":
			switch strings.ToLower(key) {
			case "name":
				dev.Name = value
			case "class":
				dev.Class = value
			case "type":
				dev.Type = value
			}
		case "regs":
			name := normalizeRegName(key)
			v, err := strconv.ParseUint(value, 0, 64)
			if err != nil {
				if parseErr == nil {
					parseErr = fmt.Errorf("register %s: bad value %q", name, value)
				}
				return
			}
			if _, seen := dev.Regs[name]; !seen {
				dev.Order = append(dev.Order, name)
			}
			dev.Regs[name] = v
		}
	})
	if err != nil {
		return DeviceIni{}, fmt.Errorf("read device ini: %w", err)
	}
	if parseErr != nil {
		return DeviceIni{}, parseErr
	}
	return dev, nil
}

// WriteTo writes the device in ini form, registers in Order.
func (d DeviceIni) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	sb.WriteString("[device]\n")
	fmt.Fprintf(&sb, "name=%s\n", d.Name)
	fmt.Fprintf(&sb, "class=%s\n", d.Class)
	fmt.Fprintf(&sb, "type=%s\n", d.Type)
	sb.WriteString("\n[regs]\n")
	for _, name := range d.Order {
		fmt.Fprintf(&sb, "%s=0x%08X\n", name, d.Regs[name])
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

func scanIni(r io.Reader, fn func(section, key, value string)) error {
	section := ""
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(stripIniComment(scanner.Text()))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(strings.Trim(line, "[]")))
			continue
		}
		key, value, ok := splitIniKV(line)
		if !ok {
			continue
		}
		fn(section, key, value)
	}
	return scanner.Err()
}

func splitIniKV(line string) (string, string, bool) {
	key, value, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}

func normalizeRegName(key string) string {
	if idx := strings.Index(key, "("); idx >= 0 {
		key = key[:idx]
	}
	return strings.ToUpper(strings.TrimSpace(key))
}

func stripIniComment(line string) string {
	// Comments start with ';' or '#' anywhere on the line.
	if idx := strings.IndexAny(line, ";#"); idx >= 0 {
		return line[:idx]
	}
	return line
}
