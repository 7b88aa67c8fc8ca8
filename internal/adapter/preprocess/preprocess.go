package preprocess

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/palisade-sh/palisade/internal/core/domain"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	digitRe      = regexp.MustCompile(`\d`)
	specialRe    = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
	urlRe        = regexp.MustCompile(`http[s]?://[a-zA-Z0-9$\-_@.&+!*\\(\\),%]+`)
	emailRe      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// Normalize lowercases, collapses runs of whitespace and trims.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(text), " "))
}

// ExtractFeatures computes the lexical features of normalized text.
func ExtractFeatures(text string) domain.Features {
	if text == "" {
		return domain.Features{}
	}
	return domain.Features{
		Length:          len(text),
		WordCount:       len(strings.Fields(text)),
		CharCount:       len(text),
		HasNumbers:      digitRe.MatchString(text),
		HasSpecialChars: specialRe.MatchString(text),
		URLCount:        len(urlRe.FindAllString(text, -1)),
		EmailCount:      len(emailRe.FindAllString(text, -1)),
	}
}

// Service is the preprocessing stage. The feature store is optional; when
// present, every pass is recorded under its vector ID.
type Service struct {
	store *FeatureStore
}

func NewService(store *FeatureStore) *Service {
	return &Service{store: store}
}

// Process normalizes text, extracts its features and assigns a vector ID.
func (s *Service) Process(ctx context.Context, text string) (*domain.PreprocessedText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized := Normalize(text)
	pre := &domain.PreprocessedText{
		Original:   text,
		Normalized: normalized,
		Features:   ExtractFeatures(normalized),
		VectorID:   uuid.NewString(),
	}

	if s.store != nil {
		s.store.Put(pre.VectorID, pre.Features)
	}
	return pre, nil
}
