package workflow

import (
	"sort"
	"sync"
	"time"
)

// PendingOperation represents an in-flight workflow run
type PendingOperation struct {
	Key           string    `json:"key"`
	CorrelationID string    `json:"correlation_id"`
	Operation     string    `json:"operation"`
	Stage         string    `json:"stage"`
	StartTime     time.Time `json:"start_time"`
}

// PendingOperationsManager serializes runs per selection key
type PendingOperationsManager struct {
	operations map[string]*PendingOperation
	maxAge     time.Duration
	mu         sync.RWMutex
	stop       chan struct{}
	once       sync.Once
}

// NewPendingOperationsManager creates a registry that forgets entries older
// than maxAge, so a crashed run cannot block its key forever
func NewPendingOperationsManager(maxAge time.Duration) *PendingOperationsManager {
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}
	pom := &PendingOperationsManager{
		operations: make(map[string]*PendingOperation),
		maxAge:     maxAge,
		stop:       make(chan struct{}),
	}
	go pom.cleanupExpired()
	return pom
}

// Begin registers op under its key. It returns the running operation and
// false when the key is already taken
func (pom *PendingOperationsManager) Begin(op *PendingOperation) (*PendingOperation, bool) {
	pom.mu.Lock()
	defer pom.mu.Unlock()
	if cur, exists := pom.operations[op.Key]; exists {
		c := *cur
		return &c, false
	}
	if op.StartTime.IsZero() {
		op.StartTime = time.Now()
	}
	pom.operations[op.Key] = op
	return op, true
}

// SetStage records progress for status queries. Only the run holding the
// key may update it
func (pom *PendingOperationsManager) SetStage(key, correlationID, stage string) {
	pom.mu.Lock()
	defer pom.mu.Unlock()
	if op, ok := pom.operations[key]; ok && op.CorrelationID == correlationID {
		op.Stage = stage
	}
}

// Get retrieves a pending operation by key
func (pom *PendingOperationsManager) Get(key string) (*PendingOperation, bool) {
	pom.mu.RLock()
	defer pom.mu.RUnlock()
	op, exists := pom.operations[key]
	if !exists {
		return nil, false
	}
	c := *op
	return &c, true
}

// List returns the pending operations, oldest first
func (pom *PendingOperationsManager) List() []PendingOperation {
	pom.mu.RLock()
	defer pom.mu.RUnlock()
	out := make([]PendingOperation, 0, len(pom.operations))
	for _, op := range pom.operations {
		out = append(out, *op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// RemoveIf releases key when it is still held by correlationID. A run that
// outlived maxAge must not release the claim of the run that replaced it
func (pom *PendingOperationsManager) RemoveIf(key, correlationID string) bool {
	pom.mu.Lock()
	defer pom.mu.Unlock()
	op, ok := pom.operations[key]
	if !ok || op.CorrelationID != correlationID {
		return false
	}
	delete(pom.operations, key)
	return true
}

// Close stops the cleanup goroutine
func (pom *PendingOperationsManager) Close() {
	pom.once.Do(func() { close(pom.stop) })
}

func (pom *PendingOperationsManager) cleanupExpired() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-pom.stop:
			return
		case <-ticker.C:
			pom.expire(time.Now())
		}
	}
}

func (pom *PendingOperationsManager) expire(now time.Time) {
	pom.mu.Lock()
	defer pom.mu.Unlock()
	for key, op := range pom.operations {
		if now.Sub(op.StartTime) > pom.maxAge {
			delete(pom.operations, key)
		}
	}
}

// EstimateRemainingTime estimates remaining seconds for an operation
func EstimateRemainingTime(operation string, elapsed time.Duration) int {
	typicalTimes := map[string]int{
		"edit_region":       40,
		"update_portrait":   45,
		"capture_region":    2,
		"remove_background": 2,
	}

	typical, ok := typicalTimes[operation]
	if !ok {
		typical = 30
	}

	remaining := typical - int(elapsed.Seconds())
	if remaining < 5 {
		remaining = 5
	}
	if remaining > 60 {
		remaining = 60
	}

	return remaining
}
