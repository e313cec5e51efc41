package retrieval

import (
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

const (
	titleTermWeight   = 0.4
	contentTermWeight = 0.2
	tagTermWeight     = 0.1
	contextTermWeight = 0.1

	freshDays = 30
	staleDays = 365

	freshMultiplier = 1.1
	staleMultiplier = 0.9

	primaryBoost   = 1.2
	freshBoost     = 1.1
	preferredBoost = 1.1
)

// entryRelevance computes the weighted term-overlap relevance of a knowledge
// entry for the given query terms, scaled by entry reliability and the
// recency multiplier, clipped to [0,1].
func entryRelevance(entry domain.KnowledgeEntry, terms []string, contextText string, now time.Time) float64 {
	if len(terms) == 0 {
		return 0
	}

	var score float64
	for _, term := range terms {
		if containsTerm(entry.Topic, term) {
			score += titleTermWeight
		}
		if containsTerm(entry.Content, term) {
			score += contentTermWeight
		}
		for _, tag := range entry.Tags {
			if containsTerm(tag, term) {
				score += tagTermWeight
				break
			}
		}
		if contextText != "" && containsTerm(contextText, term) {
			score += contextTermWeight
		}
	}

	score *= entry.Reliability
	score *= recencyMultiplier(entry.LastVerified, now)

	return clip01(score)
}

// recencyMultiplier rewards recently verified entries and penalizes stale
// ones.
func recencyMultiplier(lastVerified time.Time, now time.Time) float64 {
	if lastVerified.IsZero() {
		return 1.0
	}
	age := now.Sub(lastVerified)
	switch {
	case age < freshDays*24*time.Hour:
		return freshMultiplier
	case age > staleDays*24*time.Hour:
		return staleMultiplier
	default:
		return 1.0
	}
}

// compositeScore orders surviving sources: relevance × reliability with
// categorical boosts for primary provenance, freshness, and preferred
// categories. ageDays < 0 means the source has no known age.
func compositeScore(source domain.GroundingSource, ageDays float64, preferred []string) float64 {
	score := source.RelevanceScore * source.Reliability

	if source.SourceType == domain.SourceTypePrimary {
		score *= primaryBoost
	}
	if ageDays >= 0 && ageDays < freshDays {
		score *= freshBoost
	}
	for _, category := range preferred {
		if category != "" && containsTerm(source.Category, category) {
			score *= preferredBoost
			break
		}
	}

	return score
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
