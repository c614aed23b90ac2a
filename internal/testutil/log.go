package testutil

import (
	"sync"

	"github.com/julianstephens/heaptxn/internal/heaptxn/txn"
)

// RecordedCall represents a recorded call to a test collaborator.
type RecordedCall struct {
	Method string // "Append", "FlushToDisk", "Lock", "Unlock", "Undo"
	TxnID  uint64
	Log    txn.LogRecord
	LockID txn.LockID
	Mode   txn.LockMode
	Write  txn.WriteRecord
}

// LogManager is a txn.LogManager that records every call.
type LogManager struct {
	mu                sync.Mutex
	calls             []RecordedCall
	failOnAppendIndex int // -1 means no failure
	failOnFlush       bool

	// OnFlush, if set, runs inside FlushToDisk before it returns.
	OnFlush func()
}

// NewLogManager creates a recording log manager.
func NewLogManager() *LogManager {
	return &LogManager{failOnAppendIndex: -1}
}

// SetFailOnAppend makes the append with the given 0-based index fail.
func (f *LogManager) SetFailOnAppend(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOnAppendIndex = index
}

// SetFailOnFlush makes FlushToDisk fail.
func (f *LogManager) SetFailOnFlush(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOnFlush = fail
}

func (f *LogManager) Append(rec txn.LogRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	appendIndex := 0
	for _, call := range f.calls {
		if call.Method == "Append" {
			appendIndex++
		}
	}
	if f.failOnAppendIndex == appendIndex {
		return Fault("append")
	}

	rec.Before = rec.Before.Clone()
	rec.After = rec.After.Clone()
	f.calls = append(f.calls, RecordedCall{Method: "Append", TxnID: rec.TxnID, Log: rec})
	return nil
}

func (f *LogManager) FlushToDisk() error {
	f.mu.Lock()
	f.calls = append(f.calls, RecordedCall{Method: "FlushToDisk"})
	fail := f.failOnFlush
	hook := f.OnFlush
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return Fault("flush")
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (f *LogManager) Calls() []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedCall(nil), f.calls...)
}

// Kinds returns the kinds of the appended records in order.
func (f *LogManager) Kinds() []txn.LogKind {
	var out []txn.LogKind
	for _, c := range f.Calls() {
		if c.Method == "Append" {
			out = append(out, c.Log.Kind)
		}
	}
	return out
}

// CallSequence returns the method names in call order.
func (f *LogManager) CallSequence() []string {
	return sequence(f.Calls())
}

func sequence(calls []RecordedCall) []string {
	seq := make([]string, len(calls))
	for i, call := range calls {
		seq[i] = call.Method
	}
	return seq
}
