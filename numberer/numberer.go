// Package numberer assigns dense integer identifiers to labels.
//
// Identifiers are handed out in first-seen order starting at zero and are
// never reused, so a table that is extended during vectorization stays
// consistent with the identifiers a model was trained on.
package numberer

import (
	"sync"

	"text2phenotype.com/toponn/utils"
)

// Numberer is a growable bijection between labels and identifiers. It is
// safe for concurrent use; Number calls are serialized.
type Numberer struct {
	mu      sync.RWMutex
	values  []string
	numbers map[string]int32
}

func New() *Numberer {
	return &Numberer{
		numbers: make(map[string]int32),
	}
}

// FromLabels builds a table that numbers labels in the given order.
// Duplicates keep the identifier of their first occurrence.
func FromLabels(labels []string) *Numberer {
	n := New()
	for _, label := range labels {
		n.Number(label)
	}
	return n
}

// Number returns the identifier of label, allocating the next identifier
// if the label was not seen before.
func (n *Numberer) Number(label string) int32 {
	n.mu.RLock()
	id, ok := n.numbers[label]
	n.mu.RUnlock()
	if ok {
		return id
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	// Another writer may have added the label between the two locks.
	if id, ok := n.numbers[label]; ok {
		return id
	}
	id = int32(len(n.values))
	n.values = append(n.values, label)
	n.numbers[label] = id
	return id
}

func (n *Numberer) Lookup(label string) (int32, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	id, ok := n.numbers[label]
	return id, ok
}

func (n *Numberer) Value(id int32) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return valueAt(n.values, id)
}

func (n *Numberer) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.values)
}

// Labels returns a copy of the labels in identifier order.
func (n *Numberer) Labels() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]string(nil), n.values...)
}

func (n *Numberer) Fingerprint() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return utils.HashSequence(n.values)
}

// Freeze returns a read-only snapshot of the table. Later calls to Number
// do not affect the snapshot.
func (n *Numberer) Freeze() *Frozen {
	n.mu.RLock()
	defer n.mu.RUnlock()

	numbers := make(map[string]int32, len(n.numbers))
	for label, id := range n.numbers {
		numbers[label] = id
	}
	return &Frozen{
		values:  append([]string(nil), n.values...),
		numbers: numbers,
	}
}

// Frozen is an immutable label table. It needs no locking and is used
// where labels must not grow, such as scoring model output.
type Frozen struct {
	values  []string
	numbers map[string]int32
}

func (f *Frozen) Lookup(label string) (int32, bool) {
	id, ok := f.numbers[label]
	return id, ok
}

func (f *Frozen) Value(id int32) (string, bool) {
	return valueAt(f.values, id)
}

func (f *Frozen) Len() int {
	return len(f.values)
}

func (f *Frozen) Labels() []string {
	return append([]string(nil), f.values...)
}

func (f *Frozen) Fingerprint() uint64 {
	return utils.HashSequence(f.values)
}

// Thaw returns a growable copy of the snapshot.
func (f *Frozen) Thaw() *Numberer {
	return FromLabels(f.values)
}

func valueAt(values []string, id int32) (string, bool) {
	if id < 0 || int(id) >= len(values) {
		return "", false
	}
	return values[id], true
}
