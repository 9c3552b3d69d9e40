// Package embeddings wraps embedding stores for the input layers of the
// tagger. Keys that are missing from a store get a shared unknown vector.
package embeddings

import (
	"golang.org/x/text/unicode/norm"
	"gonum.org/v1/gonum/blas/blas32"
)

type Option func(*Embeddings)

// WithNormalization applies NFKC normalization to keys before lookup.
func WithNormalization() Option {
	return func(e *Embeddings) {
		e.normalize = true
	}
}

type Embeddings struct {
	store     Store
	unknown   []float32
	normalize bool
}

// New wraps store. The unknown vector is the L2-normalized sum of all
// vectors in the store, or the zero vector when that sum has norm zero.
func New(store Store, opts ...Option) *Embeddings {
	e := &Embeddings{
		store:   store,
		unknown: unknownEmbedding(store),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func unknownEmbedding(store Store) []float32 {
	dims := store.Dims()
	unknown := blas32.Vector{N: dims, Inc: 1, Data: make([]float32, dims)}

	store.Each(func(_ string, embedding []float32) {
		blas32.Axpy(1, blas32.Vector{N: dims, Inc: 1, Data: embedding}, unknown)
	})

	if dims == 0 {
		return unknown.Data
	}
	if l2norm := blas32.Nrm2(unknown); l2norm != 0 {
		blas32.Scal(1/l2norm, unknown)
	}
	return unknown.Data
}

func (e *Embeddings) Dims() int {
	return e.store.Dims()
}

// Embedding returns the embedding of key, or the unknown vector when the
// store has no embedding for it. The returned slice must not be modified.
func (e *Embeddings) Embedding(key string) []float32 {
	if e.normalize {
		key = norm.NFKC.String(key)
	}
	if embedding, ok := e.store.Embedding(key); ok {
		return embedding
	}
	return e.unknown
}

// Unknown returns a copy of the vector used for keys missing from the store.
func (e *Embeddings) Unknown() []float32 {
	return append([]float32(nil), e.unknown...)
}

// LayerEmbeddings bundles the embeddings of the token and part-of-speech
// input layers.
type LayerEmbeddings struct {
	tokenEmbeddings *Embeddings
	tagEmbeddings   *Embeddings
}

func NewLayerEmbeddings(tokenEmbeddings *Embeddings, tagEmbeddings *Embeddings) *LayerEmbeddings {
	return &LayerEmbeddings{
		tokenEmbeddings: tokenEmbeddings,
		tagEmbeddings:   tagEmbeddings,
	}
}

func (layers *LayerEmbeddings) TokenEmbeddings() *Embeddings {
	return layers.tokenEmbeddings
}

func (layers *LayerEmbeddings) TagEmbeddings() *Embeddings {
	return layers.tagEmbeddings
}
