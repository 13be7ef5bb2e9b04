package gatewire

import "testing"

func TestRoundTrip(t *testing.T) {
	for _, m := range []Message{MessageOpen, MessageClose} {
		got, ok := Decode(m.Encode())
		if !ok {
			t.Fatalf("Decode(%s.Encode()): not recognized", m)
		}
		if got != m {
			t.Fatalf("Decode(%s.Encode()) = %s", m, got)
		}
	}
}

func TestDecodeUnknown(t *testing.T) {
	for b := 0; b < 256; b++ {
		m, ok := Decode(byte(b))
		known := b == 0x01 || b == 0x02
		if ok != known {
			t.Fatalf("Decode(0x%02x): ok = %v, want %v", b, ok, known)
		}
		if !ok && m != 0 {
			t.Fatalf("Decode(0x%02x): got message %v despite ok=false", b, m)
		}
	}
}

func TestString(t *testing.T) {
	if MessageOpen.String() != "open" {
		t.Errorf("MessageOpen.String() = %q", MessageOpen.String())
	}
	if MessageClose.String() != "close" {
		t.Errorf("MessageClose.String() = %q", MessageClose.String())
	}
	if Message(0x7f).String() != "Message(0x7f)" {
		t.Errorf("unknown String() = %q", Message(0x7f).String())
	}
}
