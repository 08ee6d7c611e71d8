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
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/novatechflow/colwire/pkg/wire"
)

// DefaultPort is the server's conventional native-protocol TCP port.
const DefaultPort = 9000

// CompressionMethod selects which codec a Config that enables compression
// should use for outgoing and (announced) incoming data blocks.
type CompressionMethod int

const (
	CompressionLZ4 CompressionMethod = iota
	CompressionZSTD
)

func (m CompressionMethod) frame() *wire.CompressionFrame {
	switch m {
	case CompressionZSTD:
		return wire.NewZSTDFrame()
	default:
		return wire.NewLZ4Frame()
	}
}

// Config is the immutable set of parameters a Connection is opened with.
// Fields mirror the teacher's handler struct in cmd/broker/main.go in
// spirit -- a flat, pre-validated bag the connection closes over for its
// lifetime -- generalized from a server-side listener config to a
// client-side dial target.
type Config struct {
	Host     string
	Port     int // defaults to DefaultPort when 0
	Database string
	User     string
	Password string

	QueryTimeout   time.Duration
	ConnectTimeout time.Duration

	Compression       bool
	CompressionMethod CompressionMethod

	Settings map[string]string

	ClientName string // defaults to "colwire" when empty

	Logger *slog.Logger // defaults to slog.Default() when nil

	OnProgress func(wire.Progress)

	Metrics *Metrics // nil disables instrumentation

	// ReconnectRateLimit bounds how often getHealthyConnection may redial
	// after a failed ping, in attempts per second. Zero disables pacing
	// (every failed ping redials immediately).
	ReconnectRateLimit float64
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Config) port() int {
	if c.Port == 0 {
		return DefaultPort
	}
	return c.Port
}

func (c *Config) clientName() string {
	if c.ClientName == "" {
		return "colwire"
	}
	return c.ClientName
}

func (c *Config) connectTimeout() time.Duration {
	if c.ConnectTimeout == 0 {
		return 10 * time.Second
	}
	return c.ConnectTimeout
}

func (c *Config) queryTimeout() time.Duration {
	if c.QueryTimeout == 0 {
		return 0 // no deadline
	}
	return c.QueryTimeout
}

func (c *Config) address() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, strconv.Itoa(c.port()))
}
