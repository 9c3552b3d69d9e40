package numberer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// serializedNumberer is the CBOR layout of a table: the labels in
// identifier order plus the label to identifier map.
type serializedNumberer struct {
	Values  []string         `cbor:"values"`
	Numbers map[string]int32 `cbor:"numbers"`
}

var errLengthMismatch = errors.New("label list and identifier map differ in size")

// Read decodes a table written by Write.
func Read(r io.Reader) (*Numberer, error) {
	var data serializedNumberer
	if err := cbor.NewDecoder(r).Decode(&data); err != nil {
		return nil, &DeserializationError{Err: err}
	}

	if len(data.Values) != len(data.Numbers) {
		return nil, &DeserializationError{
			Err: fmt.Errorf("%w: %d labels, %d identifiers", errLengthMismatch, len(data.Values), len(data.Numbers)),
		}
	}

	n := New()
	for i, label := range data.Values {
		id, ok := data.Numbers[label]
		if !ok || id != int32(i) {
			return nil, &DeserializationError{
				Err: fmt.Errorf("label %q at position %d has identifier %d", label, i, id),
			}
		}
		n.values = append(n.values, label)
		n.numbers[label] = id
	}
	return n, nil
}

func ReadFile(path string) (*Numberer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(bufio.NewReader(f))
}

func (n *Numberer) Write(w io.Writer) error {
	n.mu.RLock()
	data := serializedNumberer{
		Values:  n.values,
		Numbers: n.numbers,
	}
	err := cbor.NewEncoder(w).Encode(data)
	n.mu.RUnlock()
	if err != nil {
		return &IOError{Err: err}
	}
	return nil
}

func (f *Frozen) Write(w io.Writer) error {
	data := serializedNumberer{
		Values:  f.values,
		Numbers: f.numbers,
	}
	if err := cbor.NewEncoder(w).Encode(data); err != nil {
		return &IOError{Err: err}
	}
	return nil
}

func (n *Numberer) WriteFile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Err: err}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = &IOError{Err: closeErr}
		}
	}()

	w := bufio.NewWriter(f)
	if err = n.Write(w); err != nil {
		return err
	}
	if err = w.Flush(); err != nil {
		return &IOError{Err: err}
	}
	return nil
}
