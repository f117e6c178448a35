// Package candidate holds the retrieval candidate value object.
package candidate

// Provenance marks which retrieval source produced a candidate.
type Provenance string

const (
	// Vector marks a candidate surfaced by embedding similarity.
	Vector Provenance = "vector"
	// Keyword marks a candidate surfaced by keyword search.
	Keyword Provenance = "keyword"
	// Both marks a candidate present in both sources after merging.
	Both Provenance = "both"
)

// priority orders provenance for tie-breaking: both > vector > keyword.
func (p Provenance) priority() int {
	switch p {
	case Both:
		return 2
	case Vector:
		return 1
	default:
		return 0
	}
}

// Before reports whether p wins a score tie against other.
func (p Provenance) Before(other Provenance) bool {
	return p.priority() > other.priority()
}

// Candidate is a product or document surfaced by retrieval.
// Scores are comparable only within one query execution.
type Candidate struct {
	id          string
	title       string
	description string
	attrs       map[string]string
	score       float64
	provenance  Provenance
	vectorRank  int
	keywordRank int
}

// New creates a candidate from a single source. rank is the zero-based
// position within that source's result list.
func New(id, title, description string, attrs map[string]string, score float64, prov Provenance, rank int) Candidate {
	c := Candidate{
		id:          id,
		title:       title,
		description: description,
		attrs:       attrs,
		score:       score,
		provenance:  prov,
		vectorRank:  -1,
		keywordRank: -1,
	}
	switch prov {
	case Vector:
		c.vectorRank = rank
	case Keyword:
		c.keywordRank = rank
	case Both:
		// merged candidates are built via Merged
	}
	return c
}

// Merged combines a vector and a keyword sighting of the same item into one
// both-tagged candidate with the given combined score. The vector side's
// textual content wins (it comes from the catalog, not a scrape).
func Merged(vec, kw Candidate, combinedScore float64) Candidate {
	m := vec
	m.score = combinedScore
	m.provenance = Both
	m.keywordRank = kw.keywordRank
	if m.title == "" {
		m.title = kw.title
	}
	if m.description == "" {
		m.description = kw.description
	}
	if len(kw.attrs) > 0 {
		// m.attrs still aliases vec's map; copy before filling gaps.
		merged := make(map[string]string, len(m.attrs)+len(kw.attrs))
		for k, v := range m.attrs {
			merged[k] = v
		}
		for k, v := range kw.attrs {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
		m.attrs = merged
	}
	return m
}

// Restore rebuilds a candidate from persisted fields. Used by caches that
// round-trip candidates through serialization.
func Restore(id, title, description string, attrs map[string]string, score float64, prov Provenance, vectorRank, keywordRank int) Candidate {
	return Candidate{
		id:          id,
		title:       title,
		description: description,
		attrs:       attrs,
		score:       score,
		provenance:  prov,
		vectorRank:  vectorRank,
		keywordRank: keywordRank,
	}
}

// WithScore returns a copy with a replaced score.
func (c Candidate) WithScore(score float64) Candidate {
	c.score = score
	return c
}

// ID returns the catalog identifier.
func (c Candidate) ID() string { return c.id }

// Title returns the item title.
func (c Candidate) Title() string { return c.title }

// Description returns the item description.
func (c Candidate) Description() string { return c.description }

// Attrs returns structured metadata (category, price, brand, ...).
func (c Candidate) Attrs() map[string]string { return c.attrs }

// Attr returns a single metadata value ("" when absent).
func (c Candidate) Attr(key string) string { return c.attrs[key] }

// Score returns the relevance score (higher is more relevant).
func (c Candidate) Score() float64 { return c.score }

// Provenance returns the retrieval source tag.
func (c Candidate) Provenance() Provenance { return c.provenance }

// VectorRank returns the zero-based rank in the vector result list (-1 if absent).
func (c Candidate) VectorRank() int { return c.vectorRank }

// KeywordRank returns the zero-based rank in the keyword result list (-1 if absent).
func (c Candidate) KeywordRank() int { return c.keywordRank }

// SourceRank returns the rank used for final tie-breaking: the vector rank
// when present, otherwise the keyword rank.
func (c Candidate) SourceRank() int {
	if c.vectorRank >= 0 {
		return c.vectorRank
	}
	return c.keywordRank
}
