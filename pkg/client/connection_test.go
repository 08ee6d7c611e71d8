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

package client

import (
	"context"
	"net"
	"testing"

	"github.com/novatechflow/colwire/pkg/wire"
)

func TestHasValuesClause(t *testing.T) {
	cases := []struct {
		sql string
		ok  bool
	}{
		{"INSERT INTO t VALUES (1, 2)", true},
		{"insert into t values(1, 2)", true},
		{"INSERT INTO t VaLuEs ( 1 )", true},
		{"SELECT * FROM t", false},
	}
	for _, c := range cases {
		_, ok := HasValuesClause(c.sql)
		if ok != c.ok {
			t.Fatalf("HasValuesClause(%q) = %v, want %v", c.sql, ok, c.ok)
		}
	}
}

// fakeServerHandshake drives the server half of a net.Pipe through exactly
// one Hello/HelloResponse exchange, matching what Connection.handshake
// expects to read back.
func fakeServerHandshake(t *testing.T, serverConn net.Conn) {
	t.Helper()
	s := wire.NewByteStream(serverConn)
	if _, err := s.ReadUVarint(); err != nil { // Hello tag
		t.Errorf("server: read hello tag: %v", err)
		return
	}
	if _, err := s.ReadString(); err != nil { // client_name
		t.Errorf("server: read client_name: %v", err)
		return
	}
	if _, err := s.ReadUVarint(); err != nil { // version_major
		return
	}
	if _, err := s.ReadUVarint(); err != nil { // version_minor
		return
	}
	if _, err := s.ReadUVarint(); err != nil { // revision
		return
	}
	if _, err := s.ReadString(); err != nil { // database
		return
	}
	if _, err := s.ReadString(); err != nil { // user
		return
	}
	if _, err := s.ReadString(); err != nil { // password
		return
	}

	_ = s.WriteString("TestServer")
	_ = s.WriteUVarint(21)
	_ = s.WriteUVarint(8)
	_ = s.WriteUVarint(wire.ClientRevision)
	_ = s.WriteString("UTC")
	_ = s.WriteString("test-server")
	_ = s.WriteUVarint(0) // version_patch
}

func newTestConnectionPair(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fakeServerHandshake(t, serverConn)
	}()

	c := &Connection{
		cfg:    &Config{},
		conn:   clientConn,
		stream: wire.NewByteStream(clientConn),
	}
	if err := c.handshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	c.state = stateIdle
	<-done
	return c, serverConn
}

func TestConnectionHandshakeCapturesServerInfo(t *testing.T) {
	c, serverConn := newTestConnectionPair(t)
	defer serverConn.Close()
	defer c.conn.Close()

	info := c.ServerInfo()
	if info.Name != "TestServer" || info.DisplayName != "test-server" {
		t.Fatalf("unexpected ServerInfo: %+v", info)
	}
	if info.Timezone == nil || info.Timezone.String() != "UTC" {
		t.Fatalf("expected UTC timezone, got %v", info.Timezone)
	}
}

// TestSendQuerySendsEmptyDataMarkerAfterQuery asserts the byte sequence on
// the wire is Ping/Pong (getHealthyConnection's liveness check), then the
// full Query packet, then an empty Data packet -- the "end of query" marker
// distilled spec §9's "Empty Data as terminator" note requires on every
// query path, not only inserts -- all before the client reads any response.
func TestSendQuerySendsEmptyDataMarkerAfterQuery(t *testing.T) {
	c, serverConn := newTestConnectionPair(t)
	defer serverConn.Close()
	defer c.conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s := wire.NewByteStream(serverConn)

		tag, err := s.ReadUVarint()
		if err != nil || tag != wire.ClientPing {
			t.Errorf("server: expected ping tag, got %d, %v", tag, err)
			return
		}
		if err := s.WriteUVarint(wire.ServerPong); err != nil {
			t.Errorf("server: write pong: %v", err)
			return
		}

		queryTag, err := s.ReadUVarint()
		if err != nil || queryTag != wire.ClientQuery {
			t.Errorf("server: expected query tag, got %d, %v", queryTag, err)
			return
		}
		if _, err := s.ReadString(); err != nil { // query_id
			t.Errorf("server: read query_id: %v", err)
			return
		}
		if _, err := s.ReadUInt8(); err != nil { // query_kind
			t.Errorf("server: read query_kind: %v", err)
			return
		}
		for i := 0; i < 3; i++ { // initial_user, initial_query_id, initial_address
			if _, err := s.ReadString(); err != nil {
				t.Errorf("server: read client info string field %d: %v", i, err)
				return
			}
		}
		iface, err := s.ReadUInt8()
		if err != nil || iface != 1 {
			t.Errorf("server: interface = %d, err = %v", iface, err)
			return
		}
		for i := 0; i < 3; i++ { // os_user, client_hostname, client_name
			if _, err := s.ReadString(); err != nil {
				t.Errorf("server: read client info string field %d: %v", i, err)
				return
			}
		}
		for i := 0; i < 3; i++ { // version_major, version_minor, revision
			if _, err := s.ReadUVarint(); err != nil {
				t.Errorf("server: read client info varint field %d: %v", i, err)
				return
			}
		}
		if _, err := s.ReadString(); err != nil { // quota_key
			t.Errorf("server: read quota_key: %v", err)
			return
		}
		settingName, err := s.ReadString() // settings terminator (no settings sent)
		if err != nil || settingName != "" {
			t.Errorf("server: settings terminator = %q, err = %v", settingName, err)
			return
		}
		stage, err := s.ReadUVarint()
		if err != nil || wire.QueryProcessingStage(stage) != wire.QueryStageComplete {
			t.Errorf("server: stage = %d, err = %v", stage, err)
			return
		}
		if _, err := s.ReadUInt8(); err != nil { // compression
			t.Errorf("server: read compression: %v", err)
			return
		}
		sql, err := s.ReadString()
		if err != nil || sql != "SELECT 1" {
			t.Errorf("server: query = %q, err = %v", sql, err)
			return
		}

		dataTag, err := s.ReadUVarint()
		if err != nil || dataTag != wire.ClientData {
			t.Errorf("server: expected empty Data marker tag, got %d, %v", dataTag, err)
			return
		}
		tableName, block, err := wire.DecodeBlock(s, nil)
		if err != nil {
			t.Errorf("server: decode empty Data marker: %v", err)
			return
		}
		if tableName != "" || block.NumRows() != 0 {
			t.Errorf("server: expected empty Data marker, got table %q, %d rows", tableName, block.NumRows())
			return
		}

		if err := s.WriteUVarint(wire.ServerEndOfStream); err != nil {
			t.Errorf("server: write end of stream: %v", err)
		}
	}()

	resp, err := c.SendQuery(context.Background(), "SELECT 1")
	<-done
	if err != nil {
		t.Fatalf("SendQuery: %v", err)
	}
	if len(resp.Blocks) != 0 {
		t.Fatalf("expected no blocks, got %d", len(resp.Blocks))
	}
}

func TestConnectionPingRoundTrip(t *testing.T) {
	c, serverConn := newTestConnectionPair(t)
	defer serverConn.Close()
	defer c.conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s := wire.NewByteStream(serverConn)
		tag, err := s.ReadUVarint()
		if err != nil || tag != wire.ClientPing {
			t.Errorf("server: expected ping tag, got %d, %v", tag, err)
			return
		}
		_ = s.WriteUVarint(wire.ServerPong)
	}()

	c.mu.Lock()
	ok := c.pingLocked(context.Background())
	c.mu.Unlock()
	<-done
	if !ok {
		t.Fatalf("expected ping to succeed")
	}
}
