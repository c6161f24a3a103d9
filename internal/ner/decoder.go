package ner

import (
	"math"
	"strings"

	"github.com/edgekit-ml/edgekit/internal/backend"
	"github.com/edgekit-ml/edgekit/internal/tokenizer"
	"github.com/edgekit-ml/edgekit/pkg/models"
)

// Decode converts per-position class logits into entity spans using BIO tags.
//
// Positions are scanned in order until the first attention-mask 0. Special
// tokens are skipped outright: they never carry a label and never close or
// extend a span. A B- tag closes any open entity and opens a new one; an I-
// tag of the same type extends it; anything else (O, or an I- of a different
// type) closes it. Entity confidence is the maximum softmax probability over
// the entity's tokens.
func Decode(out *backend.Output, tokens []string, mask []int64, labels []string) []models.Entity {
	var entities []models.Entity
	var open *models.Entity

	limit := out.SeqLen
	if len(tokens) < limit {
		limit = len(tokens)
	}
	if len(mask) < limit {
		limit = len(mask)
	}

	probs := make([]float64, out.NumLabels)

	for pos := 0; pos < limit; pos++ {
		if mask[pos] == 0 {
			break
		}
		token := tokens[pos]
		if tokenizer.IsSpecial(token) {
			continue
		}

		softmaxRow(out, pos, probs)
		best := argmax(probs)

		tag := "O"
		if best < len(labels) {
			tag = labels[best]
		}

		switch {
		case strings.HasPrefix(tag, "B-"):
			if open != nil {
				entities = append(entities, *open)
			}
			open = &models.Entity{
				Type:       tag[2:],
				Text:       stripSubword(token),
				StartToken: pos,
				EndToken:   pos,
				Confidence: probs[best],
			}
		case strings.HasPrefix(tag, "I-") && open != nil && open.Type == tag[2:]:
			open.Text = appendToken(open.Text, token)
			open.EndToken = pos
			if probs[best] > open.Confidence {
				open.Confidence = probs[best]
			}
		default:
			if open != nil {
				entities = append(entities, *open)
				open = nil
			}
		}
	}

	if open != nil {
		entities = append(entities, *open)
	}

	return entities
}

// softmaxRow writes a numerically stable softmax of position pos into dst
func softmaxRow(out *backend.Output, pos int, dst []float64) {
	maxLogit := out.At(pos, 0)
	for c := 1; c < out.NumLabels; c++ {
		if v := out.At(pos, c); v > maxLogit {
			maxLogit = v
		}
	}

	var sum float64
	for c := 0; c < out.NumLabels; c++ {
		e := math.Exp(float64(out.At(pos, c) - maxLogit))
		dst[c] = e
		sum += e
	}
	for c := range dst {
		dst[c] /= sum
	}
}

func argmax(probs []float64) int {
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return best
}

// appendToken joins a continuation token onto entity text. Subword pieces
// (##-prefixed) attach without a space.
func appendToken(text, token string) string {
	if strings.HasPrefix(token, "##") {
		return text + token[2:]
	}
	return text + " " + token
}

func stripSubword(token string) string {
	return strings.TrimPrefix(token, "##")
}
