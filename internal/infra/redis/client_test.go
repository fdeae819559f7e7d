package redis

import (
	"context"
	"strconv"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/YOGESHBOTCHA965/W/internal/infra/config"
)

func TestClientOptionsPrefersURL(t *testing.T) {
	opts, err := clientOptions(config.RedisSettings{URL: "rediss://:secret@cache.internal:6380/2", Host: "ignored", Port: 1})
	if err != nil {
		t.Fatalf("clientOptions returned error: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Fatalf("unexpected options addr=%s db=%d", opts.Addr, opts.DB)
	}
	if opts.TLSConfig == nil {
		t.Fatal("expected rediss scheme to enable TLS")
	}

	if _, err := clientOptions(config.RedisSettings{URL: "http://cache"}); err == nil {
		t.Fatal("expected unsupported scheme to fail")
	}
}

func TestClientOptionsFromHostSettings(t *testing.T) {
	opts, err := clientOptions(config.RedisSettings{Host: "localhost", Port: 6379, DB: 1, TLSEnabled: true})
	if err != nil {
		t.Fatalf("clientOptions returned error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 1 {
		t.Fatalf("unexpected options addr=%s db=%d", opts.Addr, opts.DB)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.ServerName != "localhost" {
		t.Fatal("expected TLS config for localhost")
	}
}

func TestNewClientPingsAndHealthChecks(t *testing.T) {
	server := miniredis.RunT(t)
	port, _ := strconv.Atoi(server.Port())

	client, err := NewClient(context.Background(), config.RedisSettings{Host: server.Host(), Port: port}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}

	server.Close()
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail once the server is gone")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}
