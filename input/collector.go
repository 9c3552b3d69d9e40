package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Collector receives the realized sentences of a training corpus.
type Collector interface {
	Collect(sv *SentVec) error
}

// NoopCollector discards everything.
type NoopCollector struct{}

func (NoopCollector) Collect(*SentVec) error {
	return nil
}

// CBORCollector writes every SentVec as one item of a CBOR sequence.
// Flush must be called once collection is done.
type CBORCollector struct {
	w   *bufio.Writer
	enc *cbor.Encoder
	n   int
}

func NewCBORCollector(w io.Writer) *CBORCollector {
	bw := bufio.NewWriter(w)
	return &CBORCollector{w: bw, enc: cbor.NewEncoder(bw)}
}

func (c *CBORCollector) Collect(sv *SentVec) error {
	if err := c.enc.Encode(sv); err != nil {
		return err
	}
	c.n++
	return nil
}

// Len returns the number of sentences collected.
func (c *CBORCollector) Len() int {
	return c.n
}

func (c *CBORCollector) Flush() error {
	return c.w.Flush()
}

// ReadSentVecs calls fn for every SentVec of a sequence written by
// CBORCollector.
func ReadSentVecs(r io.Reader, fn func(sv *SentVec) error) error {
	dec := cbor.NewDecoder(bufio.NewReader(r))
	for i := 0; ; i++ {
		var sv SentVec
		err := dec.Decode(&sv)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("sentence %d: %w", i, err)
		}
		if err = fn(&sv); err != nil {
			return err
		}
	}
}
