// Package social scores how closely a report echoes recent social posts.
package social

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/coastal-alert-service/internal/domain"
)

// DefaultPosts is the reference corpus used when none is configured.
var DefaultPosts = []string{
	"huge waves near coast",
	"storm approaching shoreline",
	"rough sea conditions reported",
}

const verifiedThreshold = 0.6

// ErrNoText is returned for reports with nothing to corroborate.
var ErrNoText = errors.New("social: report has no text")

// Scorer compares report text against a corpus of known posts.
type Scorer struct {
	embedder domain.Embedder
	posts    []string
}

// NewScorer creates a Scorer over posts, falling back to DefaultPosts when
// posts is empty.
func NewScorer(embedder domain.Embedder, posts []string) *Scorer {
	if len(posts) == 0 {
		posts = DefaultPosts
	}
	return &Scorer{embedder: embedder, posts: posts}
}

// Posts returns the corpus in use.
func (s *Scorer) Posts() []string {
	return s.posts
}

// Score returns the best cosine similarity between text and any corpus post.
func (s *Scorer) Score(ctx context.Context, text string) (domain.SocialResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.SocialResult{}, ErrNoText
	}

	query, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return domain.SocialResult{}, fmt.Errorf("embed report text: %w", err)
	}

	best := -1.0
	for _, post := range s.posts {
		vec, err := s.embedder.Embed(ctx, post)
		if err != nil {
			return domain.SocialResult{}, fmt.Errorf("embed social post: %w", err)
		}
		best = max(best, domain.CosineSimilarity(query, vec))
	}

	return domain.SocialResult{
		Confidence: domain.Score(best),
		Verified:   best > verifiedThreshold,
	}, nil
}
