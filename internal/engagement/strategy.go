// Package engagement decides which likes, comments and follows a persona
// performs on a tick.
package engagement

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/maheshrc27/persona-scheduler/internal/models"
	"github.com/maheshrc27/persona-scheduler/internal/platform"
)

// Action is one proposed engagement.
type Action struct {
	Kind   models.ActionKind
	Target platform.Target
	Score  float64
}

// Request is the input of one selection.
type Request struct {
	Persona    *models.Persona
	Account    *models.PlatformAccount
	Candidates []platform.Target
	// Remaining is the quota left per kind. Kinds at zero are never proposed.
	Remaining map[models.ActionKind]int
	// Budget caps the number of actions; zero means no cap beyond Remaining.
	Budget int
	// Done reports whether the target is settled for the kind already.
	Done func(kind models.ActionKind, target platform.Target) bool
}

type Strategy interface {
	SelectActions(req Request) []Action
}

// Balanced spreads the budget over like, comment and follow in rotation,
// walking candidates from most to least relevant for each kind.
type Balanced struct {
	MinScore float64
	Kinds    []models.ActionKind
}

func NewBalanced(minScore float64) *Balanced {
	return &Balanced{MinScore: minScore, Kinds: models.EngagementKinds}
}

func (b *Balanced) SelectActions(req Request) []Action {
	ranked := Rank(req.Persona, req.Candidates)
	ranked = slices.DeleteFunc(ranked, func(s Scored) bool { return s.Score < b.MinScore })
	if len(ranked) == 0 {
		return nil
	}

	type lane struct {
		kind models.ActionKind
		left int
		next int
		used map[string]bool
	}
	var lanes []*lane
	for _, kind := range b.Kinds {
		if left := req.Remaining[kind]; left > 0 {
			lanes = append(lanes, &lane{kind: kind, left: left, used: make(map[string]bool)})
		}
	}

	budget := req.Budget
	if budget <= 0 {
		budget = len(ranked) * len(lanes)
	}

	var out []Action
	for len(out) < budget {
		progressed := false
		for _, ln := range lanes {
			if len(out) >= budget || ln.left == 0 {
				continue
			}
			for ln.next < len(ranked) {
				s := ranked[ln.next]
				ln.next++
				key := TargetKey(ln.kind, s.Target)
				if key == "" || ln.used[key] || (req.Done != nil && req.Done(ln.kind, s.Target)) {
					continue
				}
				ln.used[key] = true
				out = append(out, Action{Kind: ln.kind, Target: s.Target, Score: s.Score})
				ln.left--
				progressed = true
				break
			}
		}
		if !progressed {
			break
		}
	}
	return out
}

// TargetKey is the id an engagement of kind is recorded under: follows are
// keyed by user, everything else by post.
func TargetKey(kind models.ActionKind, t platform.Target) string {
	if kind == models.ActionFollow {
		return t.UserID
	}
	return t.ID
}

type Scored struct {
	Target platform.Target
	Score  float64
}

// Rank scores candidates and orders them by score, then most recent, then id.
// Duplicate target ids are dropped.
func Rank(persona *models.Persona, candidates []platform.Target) []Scored {
	terms := personaTerms(persona)
	seen := make(map[string]bool, len(candidates))
	out := make([]Scored, 0, len(candidates))
	for _, t := range candidates {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, Scored{Target: t, Score: Relevance(terms, t)})
	}

	slices.SortStableFunc(out, func(a, b Scored) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := b.Target.PostedAt.Compare(a.Target.PostedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Target.ID, b.Target.ID)
	})
	return out
}

// Relevance is the share of persona terms found in the target, saturating
// after three matches. Personas without terms rate everything 0.5.
func Relevance(terms []string, t platform.Target) float64 {
	if len(terms) == 0 {
		return 0.5
	}
	words := make(map[string]bool)
	for _, w := range tokenize(t.Text) {
		words[w] = true
	}
	for _, h := range t.Hashtags {
		words[strings.ToLower(h)] = true
	}
	if t.Hashtag != "" {
		words[strings.ToLower(t.Hashtag)] = true
	}

	hits := 0
	for _, term := range terms {
		if words[term] {
			hits++
		}
	}
	return min(float64(hits)/float64(min(len(terms), 3)), 1)
}

func personaTerms(p *models.Persona) []string {
	if p == nil {
		return nil
	}
	var terms []string
	for _, group := range [][]string{p.Niches, p.Topics, p.Hashtags} {
		for _, entry := range group {
			terms = append(terms, tokenize(entry)...)
		}
	}
	slices.Sort(terms)
	return slices.Compact(terms)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
