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

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/novatechflow/colwire/pkg/client"
)

func main() {
	mode := strings.ToLower(envOrDefault("COLWIRE_BENCH_MODE", "query"))
	addr := strings.TrimSpace(os.Getenv("COLWIRE_BENCH_ADDR"))
	database := envOrDefault("COLWIRE_BENCH_DATABASE", "default")
	user := envOrDefault("COLWIRE_BENCH_USER", "default")
	password := os.Getenv("COLWIRE_BENCH_PASSWORD")
	count := parseEnvInt("COLWIRE_BENCH_COUNT", 1000)
	timeout := time.Duration(parseEnvInt("COLWIRE_BENCH_TIMEOUT_SEC", 30)) * time.Second

	if addr == "" {
		log.Fatalf("COLWIRE_BENCH_ADDR is required")
	}
	host, port := splitHostPort(addr)

	cfg := &client.Config{
		Host:           host,
		Port:           port,
		Database:       database,
		User:           user,
		Password:       password,
		ConnectTimeout: timeout,
		QueryTimeout:   timeout,
		Compression:    true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	conn, err := client.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer conn.Close()

	switch mode {
	case "query":
		sql := envOrDefault("COLWIRE_BENCH_SQL", "SELECT 1")
		resp, err := conn.SendQuery(ctx, sql)
		if err != nil {
			log.Fatalf("query: %v", err)
		}
		rows := 0
		for _, b := range resp.Blocks {
			rows += b.NumRows()
		}
		log.Printf("query returned %d blocks, %d rows", len(resp.Blocks), rows)
	case "insert":
		table := os.Getenv("COLWIRE_BENCH_TABLE")
		if table == "" {
			log.Fatalf("COLWIRE_BENCH_TABLE is required for insert mode")
		}
		sql := fmt.Sprintf("INSERT INTO %s VALUES", table)
		src := &counterRowSource{remaining: count}
		n, err := conn.SendInsert(ctx, sql, src)
		if err != nil {
			log.Fatalf("insert: %v", err)
		}
		log.Printf("inserted %d rows into %s", n, table)
	case "ping":
		if conn.Ping(ctx) {
			log.Printf("ping ok")
		} else {
			log.Fatalf("ping failed")
		}
	default:
		log.Fatalf("unknown COLWIRE_BENCH_MODE %q", mode)
	}
}

// counterRowSource feeds a single-column UInt64 sequence 0..N-1, enough to
// exercise SendInsert's batching without requiring a real schema.
type counterRowSource struct {
	remaining int
	next      uint64
}

func (s *counterRowSource) Next() ([]any, bool, error) {
	if s.remaining <= 0 {
		return nil, false, nil
	}
	s.remaining--
	v := s.next
	s.next++
	return []any{v}, true, nil
}

func splitHostPort(addr string) (string, int) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, client.DefaultPort
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return addr, client.DefaultPort
	}
	return addr[:idx], port
}

func envOrDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
