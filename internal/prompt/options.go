package prompt

import "fmt"

// SeedKind selects the template shape a word pair is embedded into.
type SeedKind string

const (
	// SeedMiddle places the blanks between head and tail.
	SeedMiddle SeedKind = "middle"
	// SeedWhole also pads the pair with blanks on both ends.
	SeedWhole SeedKind = "whole"
	// SeedBest searches prefix and middle blank counts for the layout the
	// model finds least surprising.
	SeedBest SeedKind = "best"
)

// ParseSeedKind maps a configuration string to a SeedKind.
func ParseSeedKind(s string) (SeedKind, error) {
	switch k := SeedKind(s); k {
	case SeedMiddle, SeedWhole, SeedBest:
		return k, nil
	}
	return "", fmt.Errorf("prompt: unknown seed kind %q", s)
}

// SeedOptions tune PairToSeed. Nil fields keep the defaults.
type SeedOptions struct {
	Kind         *SeedKind
	Blanks       *int
	PrefixBlanks *int
	SuffixBlanks *int
	BatchSize    *int
}

// Options tune Mine. Nil fields keep the defaults; the seed fields shape the
// initial template built for every pair.
type Options struct {
	Kind         *SeedKind
	Blanks       *int
	PrefixBlanks *int
	SuffixBlanks *int
	BatchSize    *int

	TopK             *int
	TopKPerPosition  *int
	Revisions        *int
	PerplexityFilter *bool
}

type seedRequest struct {
	kind         SeedKind
	blanks       int
	prefixBlanks int
	suffixBlanks int
	batchSize    int
}

type mineRequest struct {
	seedRequest
	topK             int
	topKPerPosition  int
	revisions        int
	perplexityFilter bool
}

func resolveSeed(opts SeedOptions, batchSize int) seedRequest {
	req := seedRequest{
		kind:         SeedMiddle,
		blanks:       3,
		prefixBlanks: 2,
		suffixBlanks: 2,
		batchSize:    batchSize,
	}
	if opts.Kind != nil {
		req.kind = *opts.Kind
	}
	if opts.Blanks != nil {
		req.blanks = *opts.Blanks
	}
	if opts.PrefixBlanks != nil {
		req.prefixBlanks = *opts.PrefixBlanks
	}
	if opts.SuffixBlanks != nil {
		req.suffixBlanks = *opts.SuffixBlanks
	}
	if opts.BatchSize != nil && *opts.BatchSize > 0 {
		req.batchSize = *opts.BatchSize
	}
	return req
}

func resolveMine(opts Options, batchSize int) mineRequest {
	req := mineRequest{
		seedRequest: seedRequest{
			kind:         SeedMiddle,
			blanks:       2,
			prefixBlanks: 2,
			suffixBlanks: 2,
			batchSize:    batchSize,
		},
		topK:             5,
		topKPerPosition:  15,
		revisions:        10,
		perplexityFilter: true,
	}
	if opts.Kind != nil {
		req.kind = *opts.Kind
	}
	if opts.Blanks != nil {
		req.blanks = *opts.Blanks
	}
	if opts.PrefixBlanks != nil {
		req.prefixBlanks = *opts.PrefixBlanks
	}
	if opts.SuffixBlanks != nil {
		req.suffixBlanks = *opts.SuffixBlanks
	}
	if opts.BatchSize != nil && *opts.BatchSize > 0 {
		req.batchSize = *opts.BatchSize
	}
	if opts.TopK != nil && *opts.TopK > 0 {
		req.topK = *opts.TopK
	}
	if opts.TopKPerPosition != nil && *opts.TopKPerPosition > 0 {
		req.topKPerPosition = *opts.TopKPerPosition
	}
	if opts.Revisions != nil && *opts.Revisions >= 0 {
		req.revisions = *opts.Revisions
	}
	if opts.PerplexityFilter != nil {
		req.perplexityFilter = *opts.PerplexityFilter
	}
	return req
}
