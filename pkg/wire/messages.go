// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package wire

import "fmt"

// Client and server packet tags, following the same
// API-key-as-named-constant convention the teacher's pkg/protocol/api.go
// uses for Kafka API keys, generalized here to the server's fixed,
// nine-member packet set.
const (
	ClientHello uint64 = 0
	ClientQuery uint64 = 1
	ClientData  uint64 = 2
	ClientCancel uint64 = 3
	ClientPing  uint64 = 4
)

const (
	ServerHello       uint64 = 0
	ServerData        uint64 = 1
	ServerException_  uint64 = 2
	ServerProgress    uint64 = 3
	ServerPong        uint64 = 4
	ServerEndOfStream uint64 = 5
	ServerProfileInfo uint64 = 6
	ServerTotals      uint64 = 7
	ServerExtremes    uint64 = 8
)

// Revision gates, mirroring the teacher's DBMS_MIN_REVISION_* naming
// convention. Values match the server revisions at which each optional
// field was introduced.
const (
	RevisionWithClientInfo     uint64 = 54032
	RevisionWithServerTimezone uint64 = 54058
	RevisionWithDisplayName    uint64 = 54372
	RevisionWithBlockInfo      uint64 = 51903

	ClientRevision uint64 = 54405
)

// QueryKind is the wire value of ClientInfo's query_kind field: whether this
// Query packet begins a new query at this server (QueryKindNone is the zero
// value; a Query without ClientInfo carries no query_kind byte at all), or
// continues one forwarded
// from another server in a cluster. This client never participates in
// cluster-level query forwarding, so every Query packet it builds uses
// QueryKindInitial.
type QueryKind uint8

const (
	QueryKindNone      QueryKind = 0
	QueryKindInitial   QueryKind = 1
	QueryKindSecondary QueryKind = 2
)

// ClientInfo is sent as part of Query once the negotiated revision is at
// least RevisionWithClientInfo. Field order and presence match the server's
// ClientInfo wire block exactly: query_kind, initial_user, initial_query_id,
// initial_address, interface, os_user, client_hostname, client_name,
// version_major, version_minor, revision, quota_key.
type ClientInfo struct {
	QueryKind      QueryKind
	InitialUser    string
	InitialQueryID string
	InitialAddress string
	OSUser         string
	Hostname       string
	ClientName     string
	VersionMajor   uint64
	VersionMinor   uint64
	Revision       uint64
	QuotaKey       string
}

func (ci *ClientInfo) encode(w *ByteStream) error {
	if err := w.WriteUInt8(uint8(ci.QueryKind)); err != nil {
		return err
	}
	if err := w.WriteString(ci.InitialUser); err != nil {
		return err
	}
	if err := w.WriteString(ci.InitialQueryID); err != nil {
		return err
	}
	if err := w.WriteString(ci.InitialAddress); err != nil {
		return err
	}
	if err := w.WriteUInt8(1); err != nil { // interface: TCP
		return err
	}
	if err := w.WriteString(ci.OSUser); err != nil {
		return err
	}
	if err := w.WriteString(ci.Hostname); err != nil {
		return err
	}
	if err := w.WriteString(ci.ClientName); err != nil {
		return err
	}
	if err := w.WriteUVarint(ci.VersionMajor); err != nil {
		return err
	}
	if err := w.WriteUVarint(ci.VersionMinor); err != nil {
		return err
	}
	if err := w.WriteUVarint(ci.Revision); err != nil {
		return err
	}
	return w.WriteString(ci.QuotaKey)
}

// HelloRequest is the first packet a client sends.
type HelloRequest struct {
	ClientName       string
	VersionMajor     uint64
	VersionMinor     uint64
	Revision         uint64
	Database         string
	User             string
	Password         string
}

func (h *HelloRequest) Encode(w *ByteStream) error {
	if err := w.WriteUVarint(ClientHello); err != nil {
		return err
	}
	if err := w.WriteString(h.ClientName); err != nil {
		return err
	}
	if err := w.WriteUVarint(h.VersionMajor); err != nil {
		return err
	}
	if err := w.WriteUVarint(h.VersionMinor); err != nil {
		return err
	}
	if err := w.WriteUVarint(h.Revision); err != nil {
		return err
	}
	if err := w.WriteString(h.Database); err != nil {
		return err
	}
	if err := w.WriteString(h.User); err != nil {
		return err
	}
	return w.WriteString(h.Password)
}

// HelloResponse is the server's handshake reply.
type HelloResponse struct {
	ServerName       string
	VersionMajor     uint64
	VersionMinor     uint64
	Revision         uint64
	ServerTimezone   string // "" if the negotiated revision predates RevisionWithServerTimezone
	DisplayName      string // "" if the negotiated revision predates RevisionWithDisplayName
	VersionPatch     uint64
}

func DecodeHelloResponse(r *ByteStream) (*HelloResponse, error) {
	h := &HelloResponse{}
	var err error
	if h.ServerName, err = r.ReadString(); err != nil {
		return nil, err
	}
	if h.VersionMajor, err = r.ReadUVarint(); err != nil {
		return nil, err
	}
	if h.VersionMinor, err = r.ReadUVarint(); err != nil {
		return nil, err
	}
	if h.Revision, err = r.ReadUVarint(); err != nil {
		return nil, err
	}
	if h.Revision >= RevisionWithServerTimezone {
		if h.ServerTimezone, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	if h.Revision >= RevisionWithDisplayName {
		if h.DisplayName, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	if h.Revision >= 54401 {
		if h.VersionPatch, err = r.ReadUVarint(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// QueryProcessingStage is the wire value of Query's stage field: how far the
// server should carry query processing before replying. This client always
// asks for Complete, the only stage distilled spec §4.6 names.
type QueryProcessingStage uint64

const QueryStageComplete QueryProcessingStage = 2

// QueryRequest is the client's Query packet: statement text plus settings
// and (at sufficiently high revisions) client identification. Field order
// matches distilled spec §4.6 exactly: query_id, ClientInfo (revision
// gated), settings (terminated by an empty name), stage, compression,
// query.
type QueryRequest struct {
	QueryID     string
	Info        *ClientInfo // nil if negotiated revision < RevisionWithClientInfo
	Settings    map[string]string
	Compression bool // whether the Data packets that follow are compressed
	SQL         string
	Revision    uint64
}

func (q *QueryRequest) Encode(w *ByteStream) error {
	if err := w.WriteUVarint(ClientQuery); err != nil {
		return err
	}
	if err := w.WriteString(q.QueryID); err != nil {
		return err
	}
	if q.Revision >= RevisionWithClientInfo && q.Info != nil {
		if err := q.Info.encode(w); err != nil {
			return err
		}
	}
	for k, v := range q.Settings {
		if err := w.WriteString(k); err != nil {
			return err
		}
		if err := w.WriteString(v); err != nil {
			return err
		}
	}
	if err := w.WriteString(""); err != nil { // settings terminator (empty key)
		return err
	}
	if err := w.WriteUVarint(uint64(QueryStageComplete)); err != nil {
		return err
	}
	compression := uint8(0)
	if q.Compression {
		compression = 1
	}
	if err := w.WriteUInt8(compression); err != nil {
		return err
	}
	return w.WriteString(q.SQL)
}

// ExceptionPacket is the server's error response, chaining via Nested.
type ExceptionPacket struct {
	Code       int32
	Name       string
	Message    string
	StackTrace string
	HasNested  bool
}

func DecodeExceptionChain(r *ByteStream) (*ServerException, error) {
	var head, tail *ServerException
	for {
		var p ExceptionPacket
		code, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		p.Code = code
		if p.Name, err = r.ReadString(); err != nil {
			return nil, err
		}
		if p.Message, err = r.ReadString(); err != nil {
			return nil, err
		}
		if p.StackTrace, err = r.ReadString(); err != nil {
			return nil, err
		}
		hasNested, err := r.ReadUInt8()
		if err != nil {
			return nil, err
		}
		node := &ServerException{Code: p.Code, Name: p.Name, Message: p.Message, StackTrace: p.StackTrace}
		if head == nil {
			head = node
		} else {
			tail.Nested = node
		}
		tail = node
		if hasNested == 0 {
			break
		}
	}
	return head, nil
}

// Progress reports row/byte throughput while a query runs.
type Progress struct {
	Rows        uint64
	Bytes       uint64
	TotalRows   uint64
}

func DecodeProgress(r *ByteStream) (*Progress, error) {
	p := &Progress{}
	var err error
	if p.Rows, err = r.ReadUVarint(); err != nil {
		return nil, err
	}
	if p.Bytes, err = r.ReadUVarint(); err != nil {
		return nil, err
	}
	if p.TotalRows, err = r.ReadUVarint(); err != nil {
		return nil, err
	}
	return p, nil
}

// ProfileInfo carries end-of-query statistics.
type ProfileInfo struct {
	Rows                      uint64
	Blocks                    uint64
	Bytes                     uint64
	AppliedLimit              bool
	RowsBeforeLimit           uint64
	CalculatedRowsBeforeLimit bool
}

func DecodeProfileInfo(r *ByteStream) (*ProfileInfo, error) {
	pi := &ProfileInfo{}
	var err error
	if pi.Rows, err = r.ReadUVarint(); err != nil {
		return nil, err
	}
	if pi.Blocks, err = r.ReadUVarint(); err != nil {
		return nil, err
	}
	if pi.Bytes, err = r.ReadUVarint(); err != nil {
		return nil, err
	}
	applied, err := r.ReadUInt8()
	if err != nil {
		return nil, err
	}
	pi.AppliedLimit = applied != 0
	if pi.RowsBeforeLimit, err = r.ReadUVarint(); err != nil {
		return nil, err
	}
	calc, err := r.ReadUInt8()
	if err != nil {
		return nil, err
	}
	pi.CalculatedRowsBeforeLimit = calc != 0
	return pi, nil
}

// PingRequest/PongResponse are the liveness-check pair.
type PingRequest struct{}

func (PingRequest) Encode(w *ByteStream) error {
	return w.WriteUVarint(ClientPing)
}

// PongResponse carries no payload; its presence on the wire is the whole
// message.
type PongResponse struct{}

// EndOfStreamResponse, like PongResponse, carries no payload.
type EndOfStreamResponse struct{}

// ResponsePacket is the closed set of packets a Connection may read in
// response to a Query or Data send, dispatched by DecodeResponsePacket's
// caller on a plain switch -- the teacher's Request interface fans out
// over dozens of Kafka API keys; here the set is nine members and fixed,
// so a tagged union of concrete types (not an interface) is the simpler
// idiom.
type ResponsePacket struct {
	Tag         uint64
	Hello       *HelloResponse
	TableName   string
	Block       *Block
	Exception   *ServerException
	Progress    *Progress
	Pong        *PongResponse
	EndOfStream *EndOfStreamResponse
	ProfileInfo *ProfileInfo
}

// DecodeResponsePacket reads one server packet's tag and delegates to the
// matching decoder. compress, if non-nil, is applied to Data/Totals/Extremes
// bodies only, per §4.2.
func DecodeResponsePacket(r *ByteStream, compress *CompressionFrame) (*ResponsePacket, error) {
	tag, err := r.ReadUVarint()
	if err != nil {
		return nil, err
	}
	pk := &ResponsePacket{Tag: tag}
	switch tag {
	case ServerHello:
		pk.Hello, err = DecodeHelloResponse(r)
	case ServerData, ServerTotals, ServerExtremes:
		pk.TableName, pk.Block, err = DecodeBlock(r, compress)
	case ServerException_:
		pk.Exception, err = DecodeExceptionChain(r)
	case ServerProgress:
		pk.Progress, err = DecodeProgress(r)
	case ServerPong:
		pk.Pong = &PongResponse{}
	case ServerEndOfStream:
		pk.EndOfStream = &EndOfStreamResponse{}
	case ServerProfileInfo:
		pk.ProfileInfo, err = DecodeProfileInfo(r)
	default:
		return nil, NewError(ErrUnknownPacket, fmt.Sprintf("unrecognised server packet tag %d", tag))
	}
	if err != nil {
		return nil, err
	}
	return pk, nil
}
