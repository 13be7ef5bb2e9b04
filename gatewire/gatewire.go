// Package gatewire implements the one-byte wire protocol spoken between two
// linked gates. The link carries exactly two commands: OPEN, sent when the
// local gate has started dialing, and CLOSE, sent when its wormhole shuts.
package gatewire

import "fmt"

// Message is a command exchanged between two gates.
type Message uint8

const (
	// MessageOpen tells the remote gate to start its incoming animation.
	MessageOpen Message = 0x01
	// MessageClose tells the remote gate the wormhole has closed.
	MessageClose Message = 0x02
)

// String returns a string representation of the message.
func (m Message) String() string {
	switch m {
	case MessageOpen:
		return "open"
	case MessageClose:
		return "close"
	default:
		return fmt.Sprintf("Message(0x%02x)", uint8(m))
	}
}

// Encode returns the single wire byte for the message.
func (m Message) Encode() byte {
	return byte(m)
}

// Decode decodes a wire byte into a Message. Unknown bytes are not an
// error: the protocol deliberately ignores anything it does not recognize,
// so Decode reports ok=false and the caller drops the byte.
func Decode(b byte) (Message, bool) {
	switch m := Message(b); m {
	case MessageOpen, MessageClose:
		return m, true
	default:
		return 0, false
	}
}
