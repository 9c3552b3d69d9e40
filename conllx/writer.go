package conllx

import (
	"bufio"
	"io"

	"text2phenotype.com/toponn/types"
)

type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteSentence writes a sentence followed by an empty line. Tokens are
// written with identifiers counting from 1, the sentence is left as is.
func (writer *Writer) WriteSentence(sent *types.Sentence) error {
	for i, token := range sent.Tokens {
		if _, err := writer.w.WriteString(token.Format(i + 1)); err != nil {
			return err
		}
		if err := writer.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return writer.w.WriteByte('\n')
}

func (writer *Writer) Flush() error {
	return writer.w.Flush()
}

// WriteAll writes all sentences and flushes the writer.
func (writer *Writer) WriteAll(sentences []types.Sentence) error {
	for i := range sentences {
		if err := writer.WriteSentence(&sentences[i]); err != nil {
			return err
		}
	}
	return writer.Flush()
}
