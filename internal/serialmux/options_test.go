package serialmux

import (
	"testing"

	"go.bug.st/serial"
)

func TestNormalizeAppliesDefaults(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if opts.BaudRate != 230400 {
		t.Errorf("default baud rate = %d, want 230400", opts.BaudRate)
	}
	if opts.DataBits != 8 || opts.StopBits != 1 || opts.Parity != "N" {
		t.Errorf("default mode = %+v, want 8N1", opts)
	}
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	if _, err := (PortOptions{DataBits: 9}).Normalize(); err == nil {
		t.Error("expected error for 9 data bits")
	}
	if _, err := (PortOptions{StopBits: 3}).Normalize(); err == nil {
		t.Error("expected error for 3 stop bits")
	}
	if _, err := (PortOptions{Parity: "X"}).Normalize(); err == nil {
		t.Error("expected error for parity X")
	}
}

func TestNormalizeParityAliases(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"none", "N"}, {"EVEN", "E"}, {"odd", "O"}, {" n ", "N"},
	} {
		opts, err := (PortOptions{Parity: tc.in}).Normalize()
		if err != nil {
			t.Errorf("Normalize(%q): %v", tc.in, err)
			continue
		}
		if opts.Parity != tc.want {
			t.Errorf("parity %q normalized to %q, want %q", tc.in, opts.Parity, tc.want)
		}
	}
}

func TestEqualIgnoresAliases(t *testing.T) {
	a := PortOptions{BaudRate: 230400, Parity: "none"}
	b := PortOptions{Parity: "N"}
	if !a.Equal(b) {
		t.Errorf("%+v should equal %+v after normalization", a, b)
	}
	c := PortOptions{BaudRate: 115200}
	if a.Equal(c) {
		t.Errorf("%+v should not equal %+v", a, c)
	}
}

func TestSerialMode(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode: %v", err)
	}
	if mode.BaudRate != 230400 || mode.DataBits != 8 {
		t.Errorf("mode = %+v, want 230400 8N1", mode)
	}
	if mode.Parity != serial.NoParity || mode.StopBits != serial.OneStopBit {
		t.Errorf("mode parity/stop = %v/%v, want none/one", mode.Parity, mode.StopBits)
	}
}
