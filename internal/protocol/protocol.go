package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello       = "HELLO"
	TypeWelcome     = "WELCOME"
	TypePlace       = "PLACE"
	TypeBulldoze    = "BULLDOZE"
	TypeSpawnWorker = "SPAWN_WORKER"
	TypeCancelAll   = "CANCEL_ALL"
	TypeResult      = "RESULT"
	TypeSubscribe   = "SUBSCRIBE"
	TypeFrame       = "FRAME"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// IsControl reports whether t is a request a control client may send after HELLO.
func IsControl(t string) bool {
	switch t {
	case TypePlace, TypeBulldoze, TypeSpawnWorker, TypeCancelAll:
		return true
	}
	return false
}
