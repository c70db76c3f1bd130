package ingestion

import (
	"container/list"
	"fmt"
)

// CommandDeduper implements two-tier command deduplication: an in-memory LRU
// over recent command ids backed by a durable lookup against the event log.
type CommandDeduper struct {
	lru *commandLRU

	// Tier 2: Postgres (injected via interface)
	store StoredCommandChecker

	tier2Errors int64
}

// StoredCommandChecker is the interface for the durable dedup lookup.
type StoredCommandChecker interface {
	IsDuplicate(command string, commandID string) (bool, error)
}

func NewCommandDeduper(capacity int, store StoredCommandChecker) *CommandDeduper {
	return &CommandDeduper{
		lru:   newCommandLRU(capacity),
		store: store,
	}
}

// IsDuplicate checks whether a command id has already been applied.
func (d *CommandDeduper) IsDuplicate(command string, commandID string) bool {
	key := fmt.Sprintf("%s:%s", command, commandID)

	if d.lru.Contains(key) {
		return true
	}

	if d.store != nil {
		isDup, err := d.store.IsDuplicate(command, commandID)
		if err != nil {
			// Conservative: assume not duplicate so a DB issue cannot stall
			// the command stream. The unique index on command_id still stops
			// a double insert downstream.
			d.tier2Errors++
			return false
		}
		if isDup {
			d.lru.Add(key)
			return true
		}
	}

	return false
}

// MarkApplied records a command id after successful processing.
func (d *CommandDeduper) MarkApplied(command string, commandID string) {
	d.lru.Add(fmt.Sprintf("%s:%s", command, commandID))
}

// Warm preloads composite keys (command:command_id) after a restart so the
// hot path does not fall through to the database for recent commands.
func (d *CommandDeduper) Warm(keys []string) {
	d.lru.Warm(keys)
}

// Tier2Errors returns the count of failed durable lookups.
func (d *CommandDeduper) Tier2Errors() int64 { return d.tier2Errors }

// commandLRU is an LRU set of composite dedup keys.
// Not thread-safe; only the dispatcher goroutine touches it.
type commandLRU struct {
	capacity int
	cache    map[string]*list.Element
	order    *list.List
}

func newCommandLRU(capacity int) *commandLRU {
	return &commandLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (lru *commandLRU) Contains(key string) bool {
	elem, ok := lru.cache[key]
	if ok {
		lru.order.MoveToFront(elem)
		return true
	}
	return false
}

func (lru *commandLRU) Add(key string) {
	if elem, ok := lru.cache[key]; ok {
		lru.order.MoveToFront(elem)
		return
	}

	lru.cache[key] = lru.order.PushFront(key)
	if lru.order.Len() > lru.capacity {
		lru.evictOldest()
	}
}

func (lru *commandLRU) Warm(keys []string) {
	for _, key := range keys {
		if _, ok := lru.cache[key]; ok {
			continue
		}
		lru.cache[key] = lru.order.PushFront(key)
		if lru.order.Len() > lru.capacity {
			lru.evictOldest()
		}
	}
}

func (lru *commandLRU) evictOldest() {
	elem := lru.order.Back()
	if elem != nil {
		lru.order.Remove(elem)
		delete(lru.cache, elem.Value.(string))
	}
}

func (lru *commandLRU) Size() int { return lru.order.Len() }
