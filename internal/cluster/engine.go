// Package cluster groups near-duplicate candidates so editors decide on a
// story once instead of once per reprint.
package cluster

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"edubrief/internal/model"
	"edubrief/internal/review"
)

const (
	defaultThreshold = 0.55
	cacheTTL         = 2 * time.Minute
)

type cached struct {
	clusters   []model.ArticleCluster
	ids        map[int64]struct{}
	computedAt time.Time
}

// Engine assigns candidates to near-duplicate clusters by title overlap.
// Results are cached per report track; a force refresh recomputes
// regardless of cache age.
type Engine struct {
	mu        sync.RWMutex
	threshold float64
	cache     map[string]cached
}

func NewEngine() *Engine {
	return &Engine{
		threshold: defaultThreshold,
		cache:     make(map[string]cached),
	}
}

// Clusters returns the ≥2-member groups among items. The first member of
// each group is the representative. Single articles are never framed as
// clusters. The cache only serves a request over the exact item set it
// was computed from; a different filter or page recomputes, so a response
// never names members absent from its own item list.
func (e *Engine) Clusters(track string, items []model.CandidateArticle, force bool) []model.ArticleCluster {
	ids := make(map[int64]struct{}, len(items))
	for _, item := range items {
		ids[item.ID] = struct{}{}
	}

	if !force {
		e.mu.RLock()
		c, ok := e.cache[track]
		e.mu.RUnlock()
		if ok && time.Since(c.computedAt) < cacheTTL && sameIDSet(c.ids, ids) {
			return c.clusters
		}
	}

	clusters := e.compute(items)

	e.mu.Lock()
	e.cache[track] = cached{clusters: clusters, ids: ids, computedAt: time.Now()}
	e.mu.Unlock()
	return clusters
}

func sameIDSet(a, b map[int64]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

// compute greedily assigns each item to the first existing group whose
// representative title overlaps past the threshold, else starts a new
// group. Same candidate-then-best-match shape as incremental entity
// clustering, collapsed to one pass since a candidate fetch is small.
func (e *Engine) compute(items []model.CandidateArticle) []model.ArticleCluster {
	type group struct {
		signature map[string]struct{}
		members   []model.CandidateArticle
	}

	var groups []*group
	for _, item := range items {
		sig := titleSignature(item.Title)
		if len(sig) == 0 {
			continue
		}

		var best *group
		var bestScore float64
		for _, g := range groups {
			if score := jaccard(sig, g.signature); score >= e.threshold && score > bestScore {
				best = g
				bestScore = score
			}
		}
		if best != nil {
			best.members = append(best.members, item)
			continue
		}
		groups = append(groups, &group{signature: sig, members: []model.CandidateArticle{item}})
	}

	var clusters []model.ArticleCluster
	for _, g := range groups {
		if len(g.members) < 2 {
			continue
		}
		id := g.members[0].ID
		members := make([]model.CandidateArticle, len(g.members))
		for i, m := range g.members {
			clusterID := id
			m.ClusterID = &clusterID
			members[i] = m
		}
		clusters = append(clusters, model.ArticleCluster{
			ID:      id,
			Members: members,
			Status:  review.ClusterStatus(members),
		})
	}
	return clusters
}

// Invalidate drops the cached result for a track, forcing the next call
// to recompute.
func (e *Engine) Invalidate(track string) {
	e.mu.Lock()
	delete(e.cache, track)
	e.mu.Unlock()
}

// titleSignature builds the overlap signature of a title: CJK character
// bigrams plus lowercased latin/digit runs. Bigrams carry enough word
// structure for Chinese text, where whitespace tokenizing gets nothing.
func titleSignature(title string) map[string]struct{} {
	sig := make(map[string]struct{})

	var cjk []rune
	var latin strings.Builder
	flushLatin := func() {
		if latin.Len() > 0 {
			sig[strings.ToLower(latin.String())] = struct{}{}
			latin.Reset()
		}
	}

	for _, r := range title {
		switch {
		case unicode.Is(unicode.Han, r):
			flushLatin()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			latin.WriteRune(r)
		default:
			flushLatin()
		}
	}
	flushLatin()

	if len(cjk) == 1 {
		sig[string(cjk)] = struct{}{}
	}
	for i := 0; i+1 < len(cjk); i++ {
		sig[string(cjk[i:i+2])] = struct{}{}
	}
	return sig
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	overlap := 0
	for k := range small {
		if _, ok := large[k]; ok {
			overlap++
		}
	}
	union := len(a) + len(b) - overlap
	return float64(overlap) / float64(union)
}
