package msgs

import (
	"encoding/binary"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/bebe.go/pkg/framework"
	pb "github.com/robotalks/bebe.go/pkg/proto/bebe/remote/v1"
)

// TypeID groups
const (
	GroupCommand uint32 = 0x00000000
	GroupMemory  uint32 = 0x00010000
	GroupControl uint32 = 0x00020000
	GroupCustom  uint32 = 0x7f000000
)

// TypeIDs
const (
	CommandOKTypeID   uint32 = GroupCommand | TypeIDMaskReply | 0x0000
	CommandErrTypeID  uint32 = GroupCommand | TypeIDMaskReply | 0x0001
	MemReadTypeID     uint32 = GroupMemory | 0x0000
	MemDataTypeID     uint32 = MemReadTypeID | TypeIDMaskReply
	MemWriteTypeID    uint32 = GroupMemory | 0x0001
	JumpTypeID        uint32 = GroupControl | 0x0000
	ResetTypeID       uint32 = GroupControl | 0x0001
	NockTypeID        uint32 = GroupControl | 0x0002
	TargetStateTypeID uint32 = TypeIDKindEvent | GroupControl | 0x0000
)

// MaxChunkSize bounds the data of a single MemRead or MemWrite.
const MaxChunkSize = 64 << 10

// MessageTypes maps type ids to messages.
var MessageTypes = map[uint32]SerializableMessage{
	CommandOKTypeID:   (*CommandOK)(nil),
	CommandErrTypeID:  (*CommandErr)(nil),
	MemReadTypeID:     (*MemRead)(nil),
	MemDataTypeID:     (*MemData)(nil),
	MemWriteTypeID:    (*MemWrite)(nil),
	JumpTypeID:        (*Jump)(nil),
	ResetTypeID:       (*Reset)(nil),
	NockTypeID:        (*Nock)(nil),
	TargetStateTypeID: (*TargetState)(nil),
}

// CommandOK is the generic success reply.
type CommandOK struct {
	pb.CommandOK
}

// NewCommandOK creates a CommandOK.
func NewCommandOK() *CommandOK {
	return &CommandOK{}
}

// NewMessage implements Message.
func (m *CommandOK) NewMessage() fx.Message { return &CommandOK{} }

// TypeID implements SerializableMessage.
func (m *CommandOK) TypeID() uint32 { return CommandOKTypeID }

// Serializable implements SerializableMessage.
func (m *CommandOK) Serializable() proto.Message { return &m.CommandOK }

// CommandErr is the generic failure reply. It is also an error.
type CommandErr struct {
	pb.CommandErr
}

// NewCommandErr creates a CommandErr from err.
func NewCommandErr(err error) *CommandErr {
	return &CommandErr{CommandErr: pb.CommandErr{Message: err.Error()}}
}

// NewMessage implements Message.
func (m *CommandErr) NewMessage() fx.Message { return &CommandErr{} }

// TypeID implements SerializableMessage.
func (m *CommandErr) TypeID() uint32 { return CommandErrTypeID }

// Serializable implements SerializableMessage.
func (m *CommandErr) Serializable() proto.Message { return &m.CommandErr }

// Error implements error.
func (m *CommandErr) Error() string { return m.Message }

// MemRead command.
type MemRead struct {
	pb.MemRead
}

// NewMemRead reads size bytes in address order.
func NewMemRead(addr uint64, size uint32) *MemRead {
	return &MemRead{MemRead: pb.MemRead{Addr: addr, Size: size}}
}

// NewWordRead reads a 32-bit word with a single access.
func NewWordRead(addr uint64) *MemRead {
	return &MemRead{MemRead: pb.MemRead{Addr: addr, Size: 4, Word: true}}
}

// NewMessage implements Message.
func (m *MemRead) NewMessage() fx.Message { return &MemRead{} }

// TypeID implements SerializableMessage.
func (m *MemRead) TypeID() uint32 { return MemReadTypeID }

// Serializable implements SerializableMessage.
func (m *MemRead) Serializable() proto.Message { return &m.MemRead }

// MemData reply.
type MemData struct {
	pb.MemData
}

// NewMemData creates a MemData.
func NewMemData(addr uint64, data []byte) *MemData {
	return &MemData{MemData: pb.MemData{Addr: addr, Data: data}}
}

// NewMessage implements Message.
func (m *MemData) NewMessage() fx.Message { return &MemData{} }

// TypeID implements SerializableMessage.
func (m *MemData) TypeID() uint32 { return MemDataTypeID }

// Serializable implements SerializableMessage.
func (m *MemData) Serializable() proto.Message { return &m.MemData }

// MemWrite command.
type MemWrite struct {
	pb.MemWrite
}

// NewMemWrite writes data in address order.
func NewMemWrite(addr uint64, data []byte) *MemWrite {
	return &MemWrite{MemWrite: pb.MemWrite{Addr: addr, Data: data}}
}

// NewWordWrite writes a 32-bit word with a single access.
func NewWordWrite(addr uint64, val uint32) *MemWrite {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, val)
	return &MemWrite{MemWrite: pb.MemWrite{Addr: addr, Data: data, Word: true}}
}

// WordValue returns the word of a word write.
func (m *MemWrite) WordValue() (uint32, bool) {
	if !m.Word || len(m.Data) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.Data), true
}

// NewMessage implements Message.
func (m *MemWrite) NewMessage() fx.Message { return &MemWrite{} }

// TypeID implements SerializableMessage.
func (m *MemWrite) TypeID() uint32 { return MemWriteTypeID }

// Serializable implements SerializableMessage.
func (m *MemWrite) Serializable() proto.Message { return &m.MemWrite }

// Jump command.
type Jump struct {
	pb.Jump
}

// NewJump creates a Jump.
func NewJump(addr uint64) *Jump {
	return &Jump{Jump: pb.Jump{Addr: addr}}
}

// NewMessage implements Message.
func (m *Jump) NewMessage() fx.Message { return &Jump{} }

// TypeID implements SerializableMessage.
func (m *Jump) TypeID() uint32 { return JumpTypeID }

// Serializable implements SerializableMessage.
func (m *Jump) Serializable() proto.Message { return &m.Jump }

// Reset command.
type Reset struct {
	pb.TargetReset
}

// NewMessage implements Message.
func (m *Reset) NewMessage() fx.Message { return &Reset{} }

// TypeID implements SerializableMessage.
func (m *Reset) TypeID() uint32 { return ResetTypeID }

// Serializable implements SerializableMessage.
func (m *Reset) Serializable() proto.Message { return &m.TargetReset }

// Nock command.
type Nock struct {
	pb.Nock
}

// NewMessage implements Message.
func (m *Nock) NewMessage() fx.Message { return &Nock{} }

// TypeID implements SerializableMessage.
func (m *Nock) TypeID() uint32 { return NockTypeID }

// Serializable implements SerializableMessage.
func (m *Nock) Serializable() proto.Message { return &m.Nock }

// TargetState event.
type TargetState struct {
	pb.TargetState
}

// NewTargetState creates a TargetState.
func NewTargetState(state string, addr uint64) *TargetState {
	return &TargetState{TargetState: pb.TargetState{State: state, Addr: addr}}
}

// NewMessage implements Message.
func (m *TargetState) NewMessage() fx.Message { return &TargetState{} }

// TypeID implements SerializableMessage.
func (m *TargetState) TypeID() uint32 { return TargetStateTypeID }

// Serializable implements SerializableMessage.
func (m *TargetState) Serializable() proto.Message { return &m.TargetState }
