// Package classifier scores a clear message for how answerable it is
// locally. Scoring is deterministic given a policy snapshot version: no
// hidden state, so the same message in the same session context always
// lands in the same bucket.
package classifier

import (
	"strings"
	"unicode"

	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/policy"
)

type Classifier struct{}

func New() *Classifier {
	return &Classifier{}
}

// Result carries the scalar score and the bucket the snapshot's
// thresholds map it to.
type Result struct {
	Score  float64
	Bucket models.Bucket
}

func (c *Classifier) Classify(message string, session models.SessionContext, snap *policy.Snapshot) Result {
	score := c.score(message, session)
	return Result{
		Score:  score,
		Bucket: snap.BucketFor(score),
	}
}

func (c *Classifier) score(message string, session models.SessionContext) float64 {
	// Length factor
	lengthScore := float64(len(message)) / 1000.0
	if lengthScore > 1.0 {
		lengthScore = 1.0
	}

	questionScore := questionStructure(message)
	noveltyScore := novelty(message, session.RecentTopics)
	rarityScore := vocabularyRarity(message)

	score := (lengthScore * 0.25) + (questionScore * 0.25) +
		(noveltyScore * 0.25) + (rarityScore * 0.25)

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// questionStructure scores interrogative shape: question marks plus
// open-ended question words that tend to need real reasoning.
func questionStructure(message string) float64 {
	var score float64

	if strings.Contains(message, "?") {
		score += 0.3
	}

	openEnded := []string{
		"why", "how", "explain", "compare", "what if",
		"should i", "help me understand", "what do you think",
	}
	lower := strings.ToLower(message)
	for _, marker := range openEnded {
		if strings.Contains(lower, marker) {
			score += 0.2
		}
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// novelty measures how far the message strays from the session's recent
// topic tags. Full overlap means the conversation is circling familiar
// ground and a cached or templated answer is more likely to fit.
func novelty(message string, recentTopics []string) float64 {
	if len(recentTopics) == 0 {
		return 0.5
	}

	lower := strings.ToLower(message)
	matched := 0
	for _, topic := range recentTopics {
		if topic != "" && strings.Contains(lower, strings.ToLower(topic)) {
			matched++
		}
	}

	return 1.0 - float64(matched)/float64(len(recentTopics))
}

// commonWords is a tiny stoplist standing in for a frequency corpus;
// the share of words outside it is the bucketed rarity signal.
var commonWords = map[string]bool{
	"the": true, "a": true, "an": true, "i": true, "you": true, "it": true,
	"is": true, "am": true, "are": true, "was": true, "be": true, "been": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "for": true,
	"and": true, "or": true, "but": true, "not": true, "no": true, "yes": true,
	"my": true, "me": true, "we": true, "he": true, "she": true, "they": true,
	"this": true, "that": true, "with": true, "what": true, "how": true,
	"do": true, "does": true, "did": true, "can": true, "will": true,
	"feel": true, "feeling": true, "today": true, "have": true, "had": true,
	"so": true, "just": true, "like": true, "about": true, "really": true,
	"hi": true, "hello": true, "hey": true, "thanks": true, "thank": true,
	"ok": true, "okay": true, "good": true, "please": true, "again": true,
	// contraction fragments left over after punctuation stripping
	"s": true, "t": true, "m": true, "d": true, "re": true, "ve": true, "ll": true,
}

func vocabularyRarity(message string) float64 {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		return 0
	}

	rare := 0
	for _, word := range words {
		if !commonWords[word] {
			rare++
		}
	}
	ratio := float64(rare) / float64(len(words))

	// Bucketed rather than continuous so tiny wording changes do not
	// flip routing.
	switch {
	case ratio < 0.25:
		return 0.1
	case ratio < 0.5:
		return 0.4
	case ratio < 0.75:
		return 0.7
	default:
		return 1.0
	}
}
