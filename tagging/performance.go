package tagging

import (
	"fmt"
	"sort"
)

// Result is a tagged sentence with its labels resolved.
type Result struct {
	Predicted []string
	Gold      []string
}

// Correct returns the number of tokens whose predicted label is the gold
// label.
func (r *Result) Correct() int {
	correct := 0
	for i := range r.Gold {
		if r.Predicted[i] == r.Gold[i] {
			correct++
		}
	}
	return correct
}

type labelCounts struct {
	correct int
	total   int
}

// Performance accumulates token accuracy over a corpus.
type Performance struct {
	model   Vocabulary
	gold    Vocabulary
	correct int
	total   int
	labels  map[string]*labelCounts
}

// NewPerformance resolves predicted and gold identifiers with the same
// label table.
func NewPerformance(vocab Vocabulary) *Performance {
	return NewModelPerformance(vocab, vocab)
}

// NewModelPerformance resolves predictions with the table the model was
// trained with and gold identifiers with gold. Gold may have grown past the
// model's table when the corpus has labels the model never saw; predictions
// beyond the model's table stay inconsistent.
func NewModelPerformance(model Vocabulary, gold Vocabulary) *Performance {
	return &Performance{
		model:  model,
		gold:   gold,
		labels: make(map[string]*labelCounts),
	}
}

// Add scores one sentence. Counts are only updated when every identifier of
// the sentence resolves.
func (p *Performance) Add(predicted []int32, gold []int32) (*Result, error) {
	if len(predicted) != len(gold) {
		return nil, fmt.Errorf("sentence has %d predicted and %d gold labels", len(predicted), len(gold))
	}

	predictedLabels, err := Resolve(p.model, predicted)
	if err != nil {
		return nil, err
	}
	goldLabels, err := Resolve(p.gold, gold)
	if err != nil {
		return nil, err
	}

	result := &Result{Predicted: predictedLabels, Gold: goldLabels}
	for i, goldLabel := range goldLabels {
		counts, ok := p.labels[goldLabel]
		if !ok {
			counts = &labelCounts{}
			p.labels[goldLabel] = counts
		}
		counts.total++
		p.total++
		if predictedLabels[i] == goldLabel {
			counts.correct++
			p.correct++
		}
	}
	return result, nil
}

func (p *Performance) Correct() int {
	return p.correct
}

func (p *Performance) Total() int {
	return p.total
}

// Accuracy returns correct/total. The second return value is false when no
// tokens were scored.
func (p *Performance) Accuracy() (float64, bool) {
	if p.total == 0 {
		return 0, false
	}
	return float64(p.correct) / float64(p.total), true
}

// LabelAccuracy returns the accuracy on tokens with the given gold label.
func (p *Performance) LabelAccuracy(label string) (float64, bool) {
	counts, ok := p.labels[label]
	if !ok || counts.total == 0 {
		return 0, false
	}
	return float64(counts.correct) / float64(counts.total), true
}

// Labels returns the gold labels seen so far, sorted.
func (p *Performance) Labels() []string {
	labels := make([]string, 0, len(p.labels))
	for label := range p.labels {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
