package parser

import (
	"math"
	"sync"

	"github.com/jonreiter/govader"
)

// The VADER lexicon is loaded once and only read afterwards
var sentimentAnalyzer = sync.OnceValue(govader.NewSentimentIntensityAnalyzer)

// polarity averages the VADER compound score over the sentences of text,
// giving a value in [-1, 1].
func polarity(text string) float64 {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return 0
	}

	analyzer := sentimentAnalyzer()
	sum := 0.0
	for _, s := range sentences {
		sum += analyzer.PolarityScores(s).Compound
	}
	score := sum / float64(len(sentences))
	return round(math.Max(-1, math.Min(1, score)), 4)
}
