package drift

import (
	"context"
	"math"
	"strings"
	"sync"
)

// #region sample

// sample is one accepted observation. The vector is cached at append time so
// scoring later observations never re-embeds windowed texts.
type sample struct {
	text   string
	tokens map[string]int
	vector []float64 // nil if vectorization failed for this text
}

// #endregion sample

// #region detector

// Detector maintains a capacity-bounded FIFO window of recent request texts
// and scores each new text against it. Scoring is best-effort: a failed
// embedding degrades the affected signal to 0 and never fails the request.
type Detector struct {
	mu       sync.Mutex
	embedder Embedder
	config   Config
	window   []sample
}

// NewDetector creates a detector. embedder may be nil; semantic and variance
// signals then degrade to 0 and only vocabulary shift contributes.
func NewDetector(embedder Embedder, config Config) *Detector {
	if config.WindowSize <= 0 {
		config.WindowSize = DefaultConfig().WindowSize
	}
	return &Detector{
		embedder: embedder,
		config:   config,
		window:   make([]sample, 0, config.WindowSize),
	}
}

// #endregion detector

// #region observe

// Observe scores text against the current window, then appends it. The append
// happens strictly after scoring so a text never influences its own score.
func (d *Detector) Observe(ctx context.Context, text string) Report {
	// Embed outside the lock; this is the only potentially slow step.
	var vec []float64
	if d.embedder != nil {
		if v, err := d.embedder.Embed(ctx, text); err == nil {
			vec = v
		}
	}

	next := sample{text: text, tokens: tokenCounts(text), vector: vec}

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.window) == 0 {
		d.append(next)
		return Report{}
	}

	components := Components{
		EmbeddingShift: d.semanticShift(vec),
		VocabShift:     d.vocabShift(next.tokens),
		IntentVariance: d.intentVariance(),
	}

	score := d.config.SemanticWeight*components.EmbeddingShift +
		d.config.VocabWeight*components.VocabShift +
		d.config.VarianceWeight*components.IntentVariance

	d.append(next)

	return Report{
		Score:      score,
		Flagged:    score > d.config.Threshold,
		Components: components,
	}
}

func (d *Detector) append(s sample) {
	d.window = append(d.window, s)
	if len(d.window) > d.config.WindowSize {
		d.window = d.window[1:]
	}
}

// #endregion observe

// #region signals

// semanticShift is the cosine distance between the window centroid and the
// new vector, floored at 0. Degrades to 0 when the new text or the entire
// window failed to vectorize.
func (d *Detector) semanticShift(vec []float64) float64 {
	if len(vec) == 0 {
		return 0
	}
	centroid := d.centroid(len(vec))
	if centroid == nil {
		return 0
	}
	shift := 1 - cosineSimilarity(centroid, vec)
	if shift < 0 {
		return 0
	}
	return shift
}

// centroid averages the cached window vectors of the given dimension.
func (d *Detector) centroid(dim int) []float64 {
	var centroid []float64
	count := 0
	for _, s := range d.window {
		if len(s.vector) != dim {
			continue
		}
		if centroid == nil {
			centroid = make([]float64, dim)
		}
		for i, v := range s.vector {
			centroid[i] += v
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for i := range centroid {
		centroid[i] /= float64(count)
	}
	return centroid
}

// vocabShift compares the new token multiset against the single most recent
// prior text: sum of absolute per-token count differences over the new
// text's tokens, normalized by (total new tokens + 1).
func (d *Detector) vocabShift(current map[string]int) float64 {
	previous := d.window[len(d.window)-1].tokens

	diff := 0
	total := 0
	for token, count := range current {
		delta := count - previous[token]
		if delta < 0 {
			delta = -delta
		}
		diff += delta
		total += count
	}
	return float64(diff) / float64(total+1)
}

// intentVariance is the variance of the last 5 windowed vectors' components.
// 0 when fewer than 5 samples exist.
func (d *Detector) intentVariance() float64 {
	if len(d.window) < 5 {
		return 0
	}
	recent := d.window[len(d.window)-5:]

	var values []float64
	for _, s := range recent {
		values = append(values, s.vector...)
	}
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		delta := v - mean
		variance += delta * delta
	}
	return variance / float64(len(values))
}

// #endregion signals

// #region status

// Status reports the current window occupancy.
func (d *Detector) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{WindowSize: len(d.window), Capacity: d.config.WindowSize}
}

// Reset clears the window.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.window = d.window[:0]
}

// #endregion status

// #region helpers

// tokenCounts builds a lowercase whitespace-token multiset.
func tokenCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, t := range strings.Fields(strings.ToLower(text)) {
		counts[t]++
	}
	return counts
}

// cosineSimilarity computes cosine similarity between two vectors.
// Returns 0 for zero-norm or mismatched vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// #endregion helpers
