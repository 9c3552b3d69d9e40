package input

// SentVec is a sentence represented as vectors: the concatenated token
// embeddings, the concatenated part-of-speech embeddings and the
// topological field label of every token. This is the input to a sequence
// labeling graph.
type SentVec struct {
	Tokens []float32 `cbor:"tokens"`
	Tags   []float32 `cbor:"tags"`
	Labels []int32   `cbor:"labels"`
}

func NewSentVec() *SentVec {
	return &SentVec{}
}

// NewSentVecWithCapacity allocates room for sentLen tokens.
func NewSentVecWithCapacity(sentLen int, tokenDims int, tagDims int) *SentVec {
	return &SentVec{
		Tokens: make([]float32, 0, sentLen*tokenDims),
		Tags:   make([]float32, 0, sentLen*tagDims),
		Labels: make([]int32, 0, sentLen),
	}
}

// Parts decomposes the vector into token embeddings, tag embeddings and
// label identifiers.
func (sv *SentVec) Parts() ([]float32, []float32, []int32) {
	return sv.Tokens, sv.Tags, sv.Labels
}
