package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"unicode"
)

// Resolver finds an order for a loosely formatted identifier. Different
// ingestion paths historically wrote order numbers as "Order #123",
// "Order 123", "Order%20%23123" or a bare "123"; the canonical form stored by
// the normalizer is "Order #123", and the resolver walks the historical
// encodings until one matches.
type Resolver struct {
	repo   Repository
	logger *slog.Logger
}

func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// Resolve tries each transform in order and returns the first stored order
// that matches. The final fallback extracts the first numeric run from the
// identifier and searches by substring, preferring the most specific match.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (*Order, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrNotFound
	}

	for _, candidate := range r.candidates(identifier) {
		o, err := r.repo.GetByNumber(ctx, candidate)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	digits := firstNumericRun(identifier)
	if digits == "" {
		return nil, ErrNotFound
	}
	matches, err := r.repo.SearchByNumberFragment(ctx, digits)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	if len(matches) > 1 && r.logger != nil {
		r.logger.Warn("ambiguous order identifier",
			slog.String("identifier", identifier),
			slog.Int("matches", len(matches)))
	}
	// SearchByNumberFragment orders by length, so the shortest (most
	// specific) match comes first.
	return &matches[0], nil
}

func (r *Resolver) candidates(identifier string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add(identifier)
	if decoded, err := url.QueryUnescape(identifier); err == nil {
		add(decoded)
	}
	manual := strings.ReplaceAll(identifier, "%20", " ")
	manual = strings.ReplaceAll(manual, "%23", "#")
	add(manual)
	add(strings.ReplaceAll(identifier, "+", " "))
	return out
}

func firstNumericRun(s string) string {
	start := -1
	for i, r := range s {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}
