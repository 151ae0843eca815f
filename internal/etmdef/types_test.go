package etmdef

import "testing"

func TestBackendNames(t *testing.T) {
	tests := []struct {
		name string
		want Backend
	}{
		{"coproc", BackendCoproc},
		{"MMIO", BackendMMIO},
		{" sysreg ", BackendSysReg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBackend(tt.name)
			if err != nil {
				t.Fatalf("ParseBackend(%q) error: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ParseBackend(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	if _, err := ParseBackend("jtag"); err == nil {
		t.Error("ParseBackend(jtag) should fail")
	}
	if BackendUnknown.String() != "unknown" {
		t.Errorf("BackendUnknown.String() = %q", BackendUnknown.String())
	}
}

func TestAccess(t *testing.T) {
	if !AccessRW.Readable() || !AccessRW.Writable() {
		t.Error("RW should be readable and writable")
	}
	if AccessRO.Writable() {
		t.Error("RO should not be writable")
	}
	if AccessWO.Readable() {
		t.Error("WO should not be readable")
	}
	if AccessWO.String() != "WO" {
		t.Errorf("AccessWO.String() = %q", AccessWO.String())
	}
}

func TestBitMask(t *testing.T) {
	tests := []struct {
		bits int
		want uint64
	}{
		{0, 0},
		{1, 0x1},
		{4, 0xF},
		{32, 0xFFFFFFFF},
		{64, ^uint64(0)},
		{70, ^uint64(0)},
	}
	for _, tt := range tests {
		if got := BitMask(tt.bits); got != tt.want {
			t.Errorf("BitMask(%d) = 0x%X, want 0x%X", tt.bits, got, tt.want)
		}
	}
}

func TestFixedConstants(t *testing.T) {
	if PMUEventSVC != 0x60 {
		t.Errorf("PMUEventSVC = 0x%X, want 0x60", PMUEventSVC)
	}
	if ResourceSlot < ResourceSlotMin || ResourceSlot > ResourceSlotMax {
		t.Errorf("ResourceSlot %d outside %d-%d", ResourceSlot, ResourceSlotMin, ResourceSlotMax)
	}
	if MMIOBase != 0xE0041000 || MMIOSize != 0x1000 {
		t.Errorf("MMIO window = 0x%X/0x%X", MMIOBase, MMIOSize)
	}
}
