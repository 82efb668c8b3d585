package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/gomcpgo/scene_edit_ai/pkg/client"
	"github.com/gomcpgo/scene_edit_ai/pkg/config"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := Open(context.Background(), &config.RedisConfig{Enabled: true, Addr: mr.Addr(), TTL: time.Hour}, nil)
	if _, ok := c.(*RedisCache); !ok {
		t.Fatalf("expected redis cache, got %T", c)
	}
	t.Cleanup(func() { c.Close() })
	return mr, c
}

func TestCachingClientReusesResult(t *testing.T) {
	mr, c := newTestCache(t)
	mock := client.NewMockClient([]byte("edited"))
	ec := WithCache(mock, c, nil)

	req := client.EditRequest{Image: []byte("src"), Instruction: "add snow"}
	first, err := ec.Edit(context.Background(), req)
	if err != nil {
		t.Fatalf("first edit: %v", err)
	}
	second, err := ec.Edit(context.Background(), req)
	if err != nil {
		t.Fatalf("second edit: %v", err)
	}
	if mock.Calls() != 1 {
		t.Errorf("expected one backend call, got %d", mock.Calls())
	}
	if string(second.Data) != string(first.Data) {
		t.Errorf("cached data differs: %q vs %q", second.Data, first.Data)
	}

	key := "edit:" + Key(mock.Family(), req)
	if !mr.Exists(key) {
		t.Fatalf("expected key %s", key)
	}
	if ttl := mr.TTL(key); ttl != time.Hour {
		t.Errorf("expected 1h ttl, got %v", ttl)
	}

	req.Instruction = "add rain"
	if _, err := ec.Edit(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if mock.Calls() != 2 {
		t.Errorf("different instruction must miss, got %d calls", mock.Calls())
	}
}

func TestFailedEditsNotCached(t *testing.T) {
	mr, c := newTestCache(t)
	mock := client.NewMockClient(nil)
	ec := WithCache(mock, c, nil)

	if _, err := ec.Edit(context.Background(), client.EditRequest{Image: []byte("x"), Instruction: "y"}); err == nil {
		t.Fatal("expected failure")
	}
	if len(mr.Keys()) != 0 {
		t.Errorf("expected empty cache, got %v", mr.Keys())
	}
}

func TestOpenFallsBackToNop(t *testing.T) {
	c := Open(context.Background(), &config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}, nil)
	if _, ok := c.(Nop); !ok {
		t.Errorf("expected Nop when redis is unreachable, got %T", c)
	}
	if _, ok := Open(context.Background(), &config.RedisConfig{}, nil).(Nop); !ok {
		t.Error("expected Nop when disabled")
	}

	mock := client.NewMockClient([]byte("x"))
	if WithCache(mock, Nop{}, nil) != client.EditClient(mock) {
		t.Error("Nop cache should not wrap the client")
	}
}

func TestKeyStable(t *testing.T) {
	s := 0.5
	req := client.EditRequest{Image: []byte("a"), Instruction: "b", Options: client.Options{Strength: &s}}
	if Key("sdwebui", req) != Key("sdwebui", req) {
		t.Error("key not stable")
	}
	if Key("sdwebui", req) == Key("gemini", req) {
		t.Error("family must be part of the key")
	}
}
