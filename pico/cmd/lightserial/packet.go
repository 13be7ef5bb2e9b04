package main

// HostPacketType is a type of packet.
type HostPacketType uint8

const (
	TypeInitializePacket HostPacketType = iota
	TypeClearPacket
	TypeSetPacket
)

// HostPacket is a packet sent by the host over the wire.
type HostPacket interface {
	// Type returns the type of packet.
	Type() HostPacketType
}

// InitializePacket tells the board how many channels to drive.
type InitializePacket struct {
	NumChannels uint16
}

// ClearPacket turns every channel off.
type ClearPacket struct{}

// SetPacket sets every channel to the given brightness.
type SetPacket struct {
	Levels []uint8
}

func (p InitializePacket) Type() HostPacketType { return TypeInitializePacket }
func (p ClearPacket) Type() HostPacketType      { return TypeClearPacket }
func (p SetPacket) Type() HostPacketType        { return TypeSetPacket }

// BoardPacketType is a type of packet.
type BoardPacketType uint8

const (
	TypeErrorPacket BoardPacketType = iota
	TypePanicPacket
	TypeLogPacket
)

// BoardPacket is a packet sent back to the host.
type BoardPacket interface {
	// Type returns the type of packet.
	Type() BoardPacketType
}

// ErrorPacket is a packet that indicates an error occurred.
type ErrorPacket struct {
	Message string
}

// PanicPacket is a packet that indicates the board cannot recover.
type PanicPacket struct{}

// LogPacket is a packet that contains a log message.
type LogPacket struct {
	Message string
}

func (p ErrorPacket) Type() BoardPacketType { return TypeErrorPacket }
func (p PanicPacket) Type() BoardPacketType { return TypePanicPacket }
func (p LogPacket) Type() BoardPacketType   { return TypeLogPacket }
