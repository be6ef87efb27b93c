// Package v1 holds the messages of remote.proto.
package v1

import (
	proto "github.com/golang/protobuf/proto"
)

// Typed wraps an encoded message with its type.
type Typed struct {
	TypeId   uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Sequence uint32 `protobuf:"varint,2,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Message  []byte `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *Typed) Reset()         { *m = Typed{} }
func (m *Typed) String() string { return proto.CompactTextString(m) }
func (*Typed) ProtoMessage()    {}

// CommandOK is the empty success reply.
type CommandOK struct {
}

func (m *CommandOK) Reset()         { *m = CommandOK{} }
func (m *CommandOK) String() string { return proto.CompactTextString(m) }
func (*CommandOK) ProtoMessage()    {}

// CommandErr is the failure reply.
type CommandErr struct {
	Message string `protobuf:"bytes,1,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *CommandErr) Reset()         { *m = CommandErr{} }
func (m *CommandErr) String() string { return proto.CompactTextString(m) }
func (*CommandErr) ProtoMessage()    {}

// MemRead reads target memory.
type MemRead struct {
	Addr uint64 `protobuf:"varint,1,opt,name=addr,proto3" json:"addr,omitempty"`
	Size uint32 `protobuf:"varint,2,opt,name=size,proto3" json:"size,omitempty"`
	Word bool   `protobuf:"varint,3,opt,name=word,proto3" json:"word,omitempty"`
}

func (m *MemRead) Reset()         { *m = MemRead{} }
func (m *MemRead) String() string { return proto.CompactTextString(m) }
func (*MemRead) ProtoMessage()    {}

// MemData is the reply of MemRead.
type MemData struct {
	Addr uint64 `protobuf:"varint,1,opt,name=addr,proto3" json:"addr,omitempty"`
	Data []byte `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *MemData) Reset()         { *m = MemData{} }
func (m *MemData) String() string { return proto.CompactTextString(m) }
func (*MemData) ProtoMessage()    {}

// MemWrite writes target memory.
type MemWrite struct {
	Addr uint64 `protobuf:"varint,1,opt,name=addr,proto3" json:"addr,omitempty"`
	Data []byte `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
	Word bool   `protobuf:"varint,3,opt,name=word,proto3" json:"word,omitempty"`
}

func (m *MemWrite) Reset()         { *m = MemWrite{} }
func (m *MemWrite) String() string { return proto.CompactTextString(m) }
func (*MemWrite) ProtoMessage()    {}

// Jump transfers control.
type Jump struct {
	Addr uint64 `protobuf:"varint,1,opt,name=addr,proto3" json:"addr,omitempty"`
}

func (m *Jump) Reset()         { *m = Jump{} }
func (m *Jump) String() string { return proto.CompactTextString(m) }
func (*Jump) ProtoMessage()    {}

// TargetReset resets the target.
type TargetReset struct {
}

func (m *TargetReset) Reset()         { *m = TargetReset{} }
func (m *TargetReset) String() string { return proto.CompactTextString(m) }
func (*TargetReset) ProtoMessage()    {}

// Nock (re)establishes the session with the boot agent.
type Nock struct {
}

func (m *Nock) Reset()         { *m = Nock{} }
func (m *Nock) String() string { return proto.CompactTextString(m) }
func (*Nock) ProtoMessage()    {}

// TargetState reports a session state change.
type TargetState struct {
	State string `protobuf:"bytes,1,opt,name=state,proto3" json:"state,omitempty"`
	Addr  uint64 `protobuf:"varint,2,opt,name=addr,proto3" json:"addr,omitempty"`
}

func (m *TargetState) Reset()         { *m = TargetState{} }
func (m *TargetState) String() string { return proto.CompactTextString(m) }
func (*TargetState) ProtoMessage()    {}
