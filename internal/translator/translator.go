package translator

import (
	"context"
	"time"

	"github.com/censusql/gateway/internal/breaker"
	"github.com/censusql/gateway/internal/errkind"
	"github.com/censusql/gateway/internal/geo"
	"github.com/censusql/gateway/internal/schema"
)

// SessionContext is the compact summary of a prior turn's Analysis, handed
// back to the model when the new question reads as a follow-up to it.
type SessionContext struct {
	PreviousQuestion string
	PreviousAnalysis *Analysis
}

// Translator produces an Analysis from a natural-language question.
type Translator interface {
	Translate(ctx context.Context, question string, session *SessionContext) (*Analysis, error)
}

// llmClient is the minimal surface a translator needs from an LLM
// provider; anthropicClient is the only implementation today, but the seam
// keeps the breaker-wrapped translator free of provider-specific types.
type llmClient interface {
	complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config controls the translator's timeout and follow-up detection.
type Config struct {
	Timeout time.Duration
	// IsReferential reports whether question reads as a follow-up to the
	// prior turn (pronouns, delta phrases like "now filter to"). Injected
	// so tests can force both branches deterministically instead of
	// depending on the LLM's own judgment of ambiguous phrasing.
	IsReferential func(question string) bool
	Breaker       breaker.Config
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.IsReferential == nil {
		c.IsReferential = defaultIsReferential
	}
	if c.Breaker.Name == "" {
		c.Breaker.Name = "translator"
	}

	return c
}

// breakerTranslator wraps an llmClient with a circuit breaker and timeout,
// composes the grounding prompt from the Schema Catalog, and strictly
// parses the model's JSON response into an Analysis.
type breakerTranslator struct {
	client  llmClient
	catalog *schema.Catalog
	states  *geo.Resolver
	cb      *breaker.Breaker[*Analysis]
	cfg     Config
}

// New constructs a Translator backed by the Anthropic Messages API.
func New(apiKey, model string, catalog *schema.Catalog, cfg Config) Translator {
	cfg = cfg.withDefaults()

	return &breakerTranslator{
		client:  newAnthropicClient(apiKey, model),
		catalog: catalog,
		states:  geo.States(),
		cb:      breaker.New[*Analysis](cfg.Breaker),
		cfg:     cfg,
	}
}

// newWithClient is the test seam: it accepts an arbitrary llmClient (a
// stub) instead of constructing the real Anthropic HTTP client.
func newWithClient(client llmClient, catalog *schema.Catalog, cfg Config) Translator {
	cfg = cfg.withDefaults()

	return &breakerTranslator{
		client:  client,
		catalog: catalog,
		states:  geo.States(),
		cb:      breaker.New[*Analysis](cfg.Breaker),
		cfg:     cfg,
	}
}

func (t *breakerTranslator) Translate(ctx context.Context, question string, session *SessionContext) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	useSession := session != nil && t.cfg.IsReferential(question)

	system := composeSystemPrompt(t.catalog)
	user := composeUserPrompt(question, session, useSession)

	analysis, err := t.cb.Do(ctx, func(ctx context.Context) (*Analysis, error) {
		raw, err := t.client.complete(ctx, system, user)
		if err != nil {
			return nil, err
		}

		return parseAnalysis(raw)
	})

	switch {
	case err == nil:
		t.resolveGeography(analysis)

		return analysis, nil
	case isLowConfidence(err):
		return nil, errkind.Wrap(errkind.TranslationLowConfidence, "could not understand the question as a Census query", err)
	default:
		if cerr := ctx.Err(); cerr != nil {
			return nil, errkind.Wrap(errkind.TranslationUnavailable, "the translator timed out", cerr)
		}

		return nil, errkind.Wrap(errkind.TranslationUnavailable, "the translator is temporarily unavailable", err)
	}
}

// resolveGeography maps any named-but-uncoded geographic entity to its
// FIPS code via the catalog, per the translator's step 4.
func (t *breakerTranslator) resolveGeography(a *Analysis) {
	for i := range a.Geography {
		entity := &a.Geography[i]
		if entity.Code != "" || entity.Name == "" {
			continue
		}

		if entity.Level == LevelState {
			if code, ok := t.states.Resolve(entity.Name); ok {
				entity.Code = code
			}
		}
	}
}

// defaultIsReferential recognizes pronouns and the delta phrases spec.md
// names as referential language.
func defaultIsReferential(question string) bool {
	return referentialPattern.MatchString(question)
}
