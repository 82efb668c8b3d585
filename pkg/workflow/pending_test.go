package workflow

import (
	"testing"
	"time"
)

func TestExpiredRunDoesNotReleaseNewClaim(t *testing.T) {
	pom := NewPendingOperationsManager(time.Minute)
	defer pom.Close()

	now := time.Now()
	if _, ok := pom.Begin(&PendingOperation{Key: "k", CorrelationID: "run-1", StartTime: now.Add(-2 * time.Minute)}); !ok {
		t.Fatal("first Begin should claim the key")
	}
	pom.expire(now)
	if _, ok := pom.Begin(&PendingOperation{Key: "k", CorrelationID: "run-2"}); !ok {
		t.Fatal("expected the expired claim to be replaced")
	}

	// run-1 finishing late must leave run-2's claim alone
	if pom.RemoveIf("k", "run-1") {
		t.Error("stale run released a claim it no longer holds")
	}
	pom.SetStage("k", "run-1", StagePlacement)

	cur, ok := pom.Begin(&PendingOperation{Key: "k", CorrelationID: "run-3"})
	if ok {
		t.Fatal("run-3 started while run-2 is still in flight")
	}
	if cur.CorrelationID != "run-2" || cur.Stage == StagePlacement {
		t.Errorf("expected run-2's untouched claim, got %+v", cur)
	}

	if !pom.RemoveIf("k", "run-2") {
		t.Error("owner should release its own claim")
	}
	if _, ok := pom.Begin(&PendingOperation{Key: "k", CorrelationID: "run-3"}); !ok {
		t.Error("key should be free after the owner finished")
	}
}

func TestPendingListOldestFirst(t *testing.T) {
	pom := NewPendingOperationsManager(time.Minute)
	defer pom.Close()

	now := time.Now()
	pom.Begin(&PendingOperation{Key: "b", CorrelationID: "2", StartTime: now})
	pom.Begin(&PendingOperation{Key: "a", CorrelationID: "1", StartTime: now.Add(-time.Second)})
	pom.SetStage("a", "1", StageEdit)

	ops := pom.List()
	if len(ops) != 2 || ops[0].Key != "a" || ops[0].Stage != StageEdit {
		t.Errorf("unexpected pending list %+v", ops)
	}
}
