package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

const defaultHashingDimensions = 256

type hashingProvider struct {
	dimensions int
}

// NewHashingProvider returns a local, deterministic provider based on
// feature hashing. Latin words count as one token each; runs of CJK
// characters contribute their single characters and bigrams. It needs no
// network access and is used for offline runs and tests.
func NewHashingProvider(dimensions int) Provider {
	if dimensions <= 0 {
		dimensions = defaultHashingDimensions
	}
	return &hashingProvider{dimensions: dimensions}
}

func (p *hashingProvider) Model() string {
	return fmt.Sprintf("hashing-%d", p.dimensions)
}

func (p *hashingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("text %q has no tokens to embed", text)
	}

	vec := make([]float32, p.dimensions)
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		pos := int(sum % uint64(p.dimensions))
		// The top bit picks the sign so unrelated tokens tend to cancel out.
		if sum>>63 == 1 {
			vec[pos] -= 1
		} else {
			vec[pos] += 1
		}
	}
	if isZero(vec) {
		// Every token cancelled; fall back to unsigned counts.
		for _, tok := range tokens {
			h := fnv.New64a()
			h.Write([]byte(tok))
			vec[int(h.Sum64()%uint64(p.dimensions))] += 1
		}
	}
	l2normalize(vec)
	return vec, nil
}

func (p *hashingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r)
}

// tokenize lowercases text and splits it into word and CJK n-gram tokens.
func tokenize(text string) []string {
	var (
		tokens []string
		word   strings.Builder
		cjk    []rune
	)
	flushWord := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	flushCJK := func() {
		for i, r := range cjk {
			tokens = append(tokens, string(r))
			if i+1 < len(cjk) {
				tokens = append(tokens, string(cjk[i:i+2]))
			}
		}
		cjk = cjk[:0]
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case isCJK(r):
			flushWord()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			word.WriteRune(r)
		default:
			flushWord()
			flushCJK()
		}
	}
	flushWord()
	flushCJK()
	return tokens
}
