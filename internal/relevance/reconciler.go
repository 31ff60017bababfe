// Package relevance matches resume statements against job requirements. A
// deterministic lexical pass runs for every pair; a batched model pass adds
// semantic judgment, one call per requirement. Output ordering never depends
// on call completion order.
package relevance

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-tailor/internal/llm"
	"github.com/jonathan/resume-tailor/internal/types"
)

// Config holds reconciliation tunables.
type Config struct {
	// MaxRetries bounds corrective attempts per requirement after the first
	// scoring call.
	MaxRetries int
	// Threshold is the coverage gap cutoff: a requirement whose best link
	// score is below it is a gap.
	Threshold float64
	// LexicalWeight and SemanticWeight blend the two passes. They should sum
	// to 1; the blend only applies when a semantic score exists.
	LexicalWeight  float64
	SemanticWeight float64
}

// DefaultConfig returns the reconciliation defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     2,
		Threshold:      0.35,
		LexicalWeight:  0.4,
		SemanticWeight: 0.6,
	}
}

// IncompleteError reports the invariant violation where a requirement ended
// up in neither the link set nor the gap list.
type IncompleteError struct {
	RequirementID string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("relevance mapping incomplete: requirement %s has neither links nor a coverage gap entry", e.RequirementID)
}

// Reconciler produces the relevance mapping between requirements and
// statements.
type Reconciler struct {
	client llm.Client
	logger *zap.Logger
	cfg    Config
}

// New creates a Reconciler with an injected model client.
func New(client llm.Client, logger *zap.Logger, cfg Config) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.LexicalWeight == 0 && cfg.SemanticWeight == 0 {
		cfg.LexicalWeight = DefaultConfig().LexicalWeight
		cfg.SemanticWeight = DefaultConfig().SemanticWeight
	}
	return &Reconciler{client: client, logger: logger, cfg: cfg}
}

// Reconcile scores every requirement against every statement and assembles
// the link set and coverage gaps. Requirements are judged concurrently; the
// shared client bounds how many calls are actually in flight. Semantic
// failure for one requirement degrades that requirement to lexical-only
// scores rather than dropping it. Assembly order is by requirement weight
// descending, requirement ID ascending, then statement order ascending.
func (r *Reconciler) Reconcile(ctx context.Context, requirements []types.JobRequirement, statements []types.ResumeStatement) (*types.RelevanceSet, error) {
	if len(requirements) == 0 {
		return nil, fmt.Errorf("no requirements to reconcile")
	}

	ordered := make([]types.ResumeStatement, len(statements))
	copy(ordered, statements)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderIndex < ordered[j].OrderIndex
	})

	linksPerReq := make([][]types.RelevanceLink, len(requirements))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requirements {
		g.Go(func() error {
			var semantic map[string]semanticScore
			if len(ordered) > 0 {
				var err error
				semantic, err = r.judgeRequirement(gctx, req, ordered)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					r.logger.Warn("falling back to lexical-only scores",
						zap.String("requirement", req.ID),
						zap.Error(err))
					semantic = nil
				}
			}
			linksPerReq[i] = r.buildLinks(req, ordered, semantic)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("relevance reconciliation aborted: %w", err)
	}

	order := sortOrder(requirements)

	set := &types.RelevanceSet{Threshold: r.cfg.Threshold}
	for _, idx := range order {
		set.Links = append(set.Links, linksPerReq[idx]...)
	}
	for _, idx := range order {
		req := requirements[idx]
		if maxLinkScore(linksPerReq[idx]) < r.cfg.Threshold {
			set.CoverageGaps = append(set.CoverageGaps, req)
		}
	}

	for i, req := range requirements {
		if len(linksPerReq[i]) == 0 && !inGaps(set.CoverageGaps, req.ID) {
			return nil, &IncompleteError{RequirementID: req.ID}
		}
	}

	r.logger.Info("reconciled relevance",
		zap.Int("requirements", len(requirements)),
		zap.Int("statements", len(ordered)),
		zap.Int("links", len(set.Links)),
		zap.Int("coverage_gaps", len(set.CoverageGaps)))
	return set, nil
}

// buildLinks blends lexical and semantic scores for one requirement. A pair
// with no semantic judgment scores on lexical alone, unweighted, so a model
// outage cannot push every score under the gap threshold by blending with
// zero. Zero-score pairs produce no link.
func (r *Reconciler) buildLinks(req types.JobRequirement, statements []types.ResumeStatement, semantic map[string]semanticScore) []types.RelevanceLink {
	reqTokens := tokenSet(req.Text)

	var links []types.RelevanceLink
	for _, st := range statements {
		lex := lexicalScore(reqTokens, tokenSet(st.Text))

		var (
			score       float64
			rationale   string
			semanticPtr *float64
		)
		if s, ok := semantic[st.ID]; ok {
			score = clamp01(r.cfg.LexicalWeight*lex + r.cfg.SemanticWeight*s.score)
			rationale = s.rationale
			sem := s.score
			semanticPtr = &sem
		} else {
			score = clamp01(lex)
			rationale = "lexical token overlap with the requirement"
		}

		if score <= 0 {
			continue
		}
		links = append(links, types.RelevanceLink{
			RequirementID: req.ID,
			StatementID:   st.ID,
			Score:         score,
			Rationale:     rationale,
			LexicalScore:  lex,
			SemanticScore: semanticPtr,
		})
	}
	return links
}

// sortOrder returns requirement indexes sorted by weight descending, then ID
// ascending.
func sortOrder(requirements []types.JobRequirement) []int {
	order := make([]int, len(requirements))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ra, rb := requirements[order[a]], requirements[order[b]]
		if ra.Weight != rb.Weight {
			return ra.Weight > rb.Weight
		}
		return ra.ID < rb.ID
	})
	return order
}

func maxLinkScore(links []types.RelevanceLink) float64 {
	max := 0.0
	for _, l := range links {
		if l.Score > max {
			max = l.Score
		}
	}
	return max
}

func inGaps(gaps []types.JobRequirement, id string) bool {
	for _, g := range gaps {
		if g.ID == id {
			return true
		}
	}
	return false
}
