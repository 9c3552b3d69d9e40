package embeddings

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadText reads embeddings in the word2vec text format: an optional
// "count dims" header followed by one "key v1 ... vd" line per embedding.
//
// A two-field first line of integers is only a header when the line after
// it holds dims values. Otherwise it is the first embedding of a
// one-dimensional file.
func ReadText(r io.Reader) (*MemoryStore, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		store      *MemoryStore
		header     []string
		headerDims int
	)
	add := func(lineNo int, fields []string) error {
		if store == nil {
			store = NewMemoryStore(len(fields) - 1)
		}
		embedding, err := parseEmbedding(fields[1:])
		if err == nil {
			err = store.Add(fields[0], embedding)
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		return nil
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if lineNo == 1 {
			if dims, ok := parseHeader(fields); ok {
				header, headerDims = fields, dims
				continue
			}
		}
		if header != nil {
			if len(fields) == headerDims+1 {
				store = NewMemoryStore(headerDims)
			} else if err := add(1, header); err != nil {
				return nil, err
			}
			header = nil
		}

		if err := add(lineNo, fields); err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if header != nil {
		store = NewMemoryStore(headerDims)
	}
	if store == nil {
		return nil, fmt.Errorf("no embeddings found")
	}
	return store, nil
}

func parseEmbedding(values []string) ([]float32, error) {
	embedding := make([]float32, len(values))
	for i, v := range values {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return nil, err
		}
		embedding[i] = float32(f)
	}
	return embedding, nil
}

// parseHeader returns the dimensionality of a "count dims" header line.
func parseHeader(fields []string) (int, bool) {
	if len(fields) != 2 {
		return 0, false
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 0 {
		return 0, false
	}
	dims, err := strconv.Atoi(fields[1])
	if err != nil || dims <= 0 {
		return 0, false
	}
	return dims, true
}

func ReadTextFile(path string) (*MemoryStore, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	store, err := ReadText(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}
