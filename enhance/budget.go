package enhance

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// promptBudget caps prompt size so that a large schema never blows the
// model's context window. Counting uses tiktoken with the encoding for the
// configured model; the encoding loads lazily since it may fetch data on
// first use.
type promptBudget struct {
	encoding  string
	maxTokens int
	enc       *tiktoken.Tiktoken
	once      sync.Once
	initErr   error
}

var modelEncodings = map[string]struct {
	encoding  string
	maxTokens int
}{
	"gpt-4o":        {encoding: "o200k_base", maxTokens: 4096},
	"gpt-4o-mini":   {encoding: "o200k_base", maxTokens: 4096},
	"gpt-4":         {encoding: "cl100k_base", maxTokens: 4096},
	"gpt-3.5-turbo": {encoding: "cl100k_base", maxTokens: 4096},
}

func newPromptBudget(model string) *promptBudget {
	info, ok := modelEncodings[model]
	if !ok {
		for prefix, i := range modelEncodings {
			if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
				info = i
				ok = true
				break
			}
		}
	}
	if !ok {
		info = struct {
			encoding  string
			maxTokens int
		}{encoding: "cl100k_base", maxTokens: 4096}
	}
	return &promptBudget{encoding: info.encoding, maxTokens: info.maxTokens}
}

func (b *promptBudget) init() error {
	b.once.Do(func() {
		enc, err := tiktoken.GetEncoding(b.encoding)
		if err != nil {
			b.initErr = fmt.Errorf("init tiktoken encoding %s: %w", b.encoding, err)
			return
		}
		b.enc = enc
	})
	return b.initErr
}

// fit returns the prompt unchanged when it is within budget and a truncated
// rendition otherwise. Truncation happens on token boundaries.
func (b *promptBudget) fit(prompt string) (string, error) {
	if err := b.init(); err != nil {
		return "", err
	}
	tokens := b.enc.Encode(prompt, nil, nil)
	if len(tokens) <= b.maxTokens {
		return prompt, nil
	}
	return b.enc.Decode(tokens[:b.maxTokens]) + "\n[schema truncated]", nil
}
