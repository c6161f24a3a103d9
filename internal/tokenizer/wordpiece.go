package tokenizer

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// WordPieceTokenizer implements tokenization for BERT-style models
type WordPieceTokenizer struct {
	vocab      map[string]int32
	idToToken  map[int32]string
	unkTokenID int32
	padTokenID int32
	clsTokenID int32
	sepTokenID int32
	maxSeqLen  int
	lowercase  bool
}

// Encoding is a tokenized sequence padded to the tokenizer's max length.
// Tokens holds the surface form at every position, including specials and
// padding, so a decoder can recover entity text.
type Encoding struct {
	IDs           []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	Tokens        []string
}

var wordRe = regexp.MustCompile(`[\w]+|[^\s\w]`)

// specialTokens are reserved positions that never carry entity labels
var specialTokens = map[string]bool{
	"[CLS]":  true,
	"[SEP]":  true,
	"[PAD]":  true,
	"[MASK]": true,
	"[UNK]":  true,
}

// IsSpecial reports whether token is a reserved special token
func IsSpecial(token string) bool {
	return specialTokens[token]
}

// Load reads a vocab.txt file (one token per line, line number = id)
func Load(vocabPath string, maxSeqLen int, lowercase bool) (*WordPieceTokenizer, error) {
	data, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocab file: %w", err)
	}

	vocab := make(map[string]int32)
	idToToken := make(map[int32]string)

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		token := strings.TrimRight(line, "\r")
		if token == "" {
			continue
		}
		vocab[token] = int32(i)
		idToToken[int32(i)] = token
	}

	required := []string{"[UNK]", "[PAD]", "[CLS]", "[SEP]"}
	ids := make(map[string]int32, len(required))
	for _, tok := range required {
		id, ok := vocab[tok]
		if !ok {
			return nil, fmt.Errorf("vocab missing %s token", tok)
		}
		ids[tok] = id
	}

	return &WordPieceTokenizer{
		vocab:      vocab,
		idToToken:  idToToken,
		unkTokenID: ids["[UNK]"],
		padTokenID: ids["[PAD]"],
		clsTokenID: ids["[CLS]"],
		sepTokenID: ids["[SEP]"],
		maxSeqLen:  maxSeqLen,
		lowercase:  lowercase,
	}, nil
}

// MaxSeqLen returns the padded sequence length
func (t *WordPieceTokenizer) MaxSeqLen() int {
	return t.maxSeqLen
}

// Encode tokenizes text into a padded [CLS] ... [SEP] [PAD]... sequence
func (t *WordPieceTokenizer) Encode(text string) *Encoding {
	tokens := t.tokenize(text)

	// Reserve space for [CLS] and [SEP]
	maxTokens := t.maxSeqLen - 2
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}

	enc := &Encoding{
		IDs:           make([]int64, t.maxSeqLen),
		AttentionMask: make([]int64, t.maxSeqLen),
		TokenTypeIDs:  make([]int64, t.maxSeqLen),
		Tokens:        make([]string, t.maxSeqLen),
	}

	enc.IDs[0] = int64(t.clsTokenID)
	enc.AttentionMask[0] = 1
	enc.Tokens[0] = "[CLS]"

	for i, token := range tokens {
		id, ok := t.vocab[token]
		if !ok {
			id = t.unkTokenID
		}
		enc.IDs[i+1] = int64(id)
		enc.AttentionMask[i+1] = 1
		enc.Tokens[i+1] = token
	}

	enc.IDs[len(tokens)+1] = int64(t.sepTokenID)
	enc.AttentionMask[len(tokens)+1] = 1
	enc.Tokens[len(tokens)+1] = "[SEP]"

	for i := len(tokens) + 2; i < t.maxSeqLen; i++ {
		enc.Tokens[i] = "[PAD]"
	}

	return enc
}

// tokenize splits text into WordPiece tokens
func (t *WordPieceTokenizer) tokenize(text string) []string {
	if t.lowercase {
		text = strings.ToLower(text)
	}

	var tokens []string
	words := wordRe.FindAllString(text, -1)
	for _, word := range words {
		tokens = append(tokens, t.wordpiece(word)...)
	}
	return tokens
}

// wordpiece splits a word greedily into vocabulary pieces
func (t *WordPieceTokenizer) wordpiece(word string) []string {
	if len(word) == 0 {
		return nil
	}

	if _, ok := t.vocab[word]; ok {
		return []string{word}
	}

	var tokens []string
	start := 0

	for start < len(word) {
		end := len(word)
		var curToken string
		found := false

		for end > start {
			substr := word[start:end]
			if start > 0 {
				substr = "##" + substr
			}
			if _, ok := t.vocab[substr]; ok {
				curToken = substr
				found = true
				break
			}
			end--
		}

		if !found {
			if start > 0 {
				tokens = append(tokens, "##"+string(word[start]))
			} else {
				tokens = append(tokens, string(word[start]))
			}
			start++
		} else {
			tokens = append(tokens, curToken)
			start = end
		}
	}

	return tokens
}
