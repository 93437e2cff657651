package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/quantrank/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{
		Redis: config.RedisConfig{Enabled: false},
	}
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestNewClient_Disabled(t *testing.T) {
	client := disabledClient(t)
	if client.Enabled() {
		t.Error("expected client to be disabled")
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(disabledClient(t), "test")

	var result string
	found, err := cache.Get(context.Background(), "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("expected miss when Redis disabled")
	}

	if err := cache.Set(context.Background(), "key", "value", time.Minute); err != nil {
		t.Errorf("Set() should be a no-op when disabled, got %v", err)
	}
}

func TestLock_Disabled(t *testing.T) {
	lock := NewLock(disabledClient(t), "test")

	release, acquired, err := lock.Acquire(context.Background(), "KR:2026-01-08", time.Minute)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !acquired {
		t.Fatal("expected acquisition to succeed when Redis disabled")
	}
	if err := release(context.Background()); err != nil {
		t.Errorf("release error = %v", err)
	}
}
