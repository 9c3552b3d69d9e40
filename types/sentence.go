package types

type Sentence struct {
	Tokens []*Token
}

func (sent *Sentence) Len() int {
	return len(sent.Tokens)
}

func (sent *Sentence) Forms() []string {
	forms := make([]string, len(sent.Tokens))
	for i, token := range sent.Tokens {
		forms[i] = token.Form
	}
	return forms
}
