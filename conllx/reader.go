// Package conllx reads and writes sentences in the CoNLL-X format: one
// token per line with ten tab-separated columns, sentences separated by an
// empty line.
package conllx

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"text2phenotype.com/toponn/types"
)

const (
	numColumns = 10
	emptyField = "_"
)

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Reader struct {
	scanner *bufio.Scanner
	lineNo  int
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// ReadSentence returns the next sentence, or io.EOF when the input is
// exhausted.
func (reader *Reader) ReadSentence() (*types.Sentence, error) {
	var sent types.Sentence
	for reader.scanner.Scan() {
		reader.lineNo++
		line := strings.TrimRight(reader.scanner.Text(), "\r")
		if len(strings.TrimSpace(line)) == 0 {
			if len(sent.Tokens) > 0 {
				return &sent, nil
			}
			continue
		}

		token, err := parseToken(line)
		if err != nil {
			return nil, &ParseError{Line: reader.lineNo, Err: err}
		}
		sent.Tokens = append(sent.Tokens, token)
	}

	if err := reader.scanner.Err(); err != nil {
		return nil, err
	}
	if len(sent.Tokens) > 0 {
		return &sent, nil
	}
	return nil, io.EOF
}

// ReadAll reads all remaining sentences.
func (reader *Reader) ReadAll() ([]types.Sentence, error) {
	var sentences []types.Sentence
	for {
		sent, err := reader.ReadSentence()
		if err == io.EOF {
			return sentences, nil
		}
		if err != nil {
			return nil, err
		}
		sentences = append(sentences, *sent)
	}
}

func parseToken(line string) (*types.Token, error) {
	columns := strings.Split(line, "\t")
	if len(columns) < 2 || len(columns) > numColumns {
		return nil, fmt.Errorf("expected 2 to %d columns, got %d", numColumns, len(columns))
	}
	for len(columns) < numColumns {
		columns = append(columns, emptyField)
	}

	id, err := strconv.Atoi(columns[0])
	if err != nil {
		return nil, fmt.Errorf("invalid token identifier %q", columns[0])
	}
	head, err := optionalInt(columns[6])
	if err != nil {
		return nil, fmt.Errorf("invalid head %q", columns[6])
	}
	pHead, err := optionalInt(columns[8])
	if err != nil {
		return nil, fmt.Errorf("invalid projective head %q", columns[8])
	}

	return &types.Token{
		ID:       id,
		Form:     columns[1],
		Lemma:    optional(columns[2]),
		CPOS:     optional(columns[3]),
		Tag:      optional(columns[4]),
		Features: types.ParseFeatures(columns[5]),
		Head:     head,
		HeadRel:  optional(columns[7]),
		PHead:    pHead,
		PHeadRel: optional(columns[9]),
	}, nil
}

func optional(column string) *string {
	if column == emptyField || len(column) == 0 {
		return nil
	}
	return &column
}

func optionalInt(column string) (*int, error) {
	if column == emptyField || len(column) == 0 {
		return nil, nil
	}
	n, err := strconv.Atoi(column)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
