package lightserial

import (
	"bytes"
	"reflect"
	"testing"
)

func TestHostPacketRoundTrip(t *testing.T) {
	rctx := ReadContext{NumChannels: 9}

	packets := []HostPacket{
		InitializePacket{NumChannels: 9},
		ClearPacket{},
		SetPacket{Levels: []uint8{0, 32, 64, 96, 128, 160, 192, 224, 255}},
	}

	for _, want := range packets {
		var buf bytes.Buffer
		if err := WriteHostPacket(&buf, want); err != nil {
			t.Fatalf("%s: write: %v", want.Type(), err)
		}
		got, err := ReadHostPacket(&buf, rctx)
		if err != nil {
			t.Fatalf("%s: read: %v", want.Type(), err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %#v, want %#v", want.Type(), got, want)
		}
		if buf.Len() != 0 {
			t.Fatalf("%s: %d bytes left over", want.Type(), buf.Len())
		}
	}
}

func TestBoardPacketRoundTrip(t *testing.T) {
	packets := []BoardPacket{
		ErrorPacket{Message: "pwm channel exhausted"},
		PanicPacket{},
		LogPacket{Message: "ready"},
	}

	for _, want := range packets {
		var buf bytes.Buffer
		if err := WriteBoardPacket(&buf, want); err != nil {
			t.Fatalf("%s: write: %v", want.Type(), err)
		}
		got, err := ReadBoardPacket(&buf)
		if err != nil {
			t.Fatalf("%s: read: %v", want.Type(), err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %#v, want %#v", want.Type(), got, want)
		}
	}
}

func TestCorruptChecksumRejected(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHostPacket(&buf, SetPacket{Levels: []uint8{1, 2, 3}}); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := buf.Bytes()
	b[len(b)-1] ^= 0xff

	_, err := ReadHostPacket(bytes.NewReader(b), ReadContext{NumChannels: 3})
	if err == nil {
		t.Fatal("corrupt packet accepted")
	}
}

func TestCorruptPayloadRejected(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteBoardPacket(&buf, LogPacket{Message: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	b := buf.Bytes()
	b[4] ^= 0x01 // flip a bit inside the message body

	_, err := ReadBoardPacket(bytes.NewReader(b))
	if err == nil {
		t.Fatal("corrupt packet accepted")
	}
}

func TestUnknownHostPacketType(t *testing.T) {
	_, err := ReadHostPacket(bytes.NewReader([]byte{0x7f, 0, 0, 0, 0}), ReadContext{})
	if err == nil {
		t.Fatal("unknown packet type accepted")
	}
}
