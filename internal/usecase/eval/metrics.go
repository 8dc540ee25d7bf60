package eval

// RecallAtK is the fraction of relevant records surfaced in the top k
// ranked ids. Zero relevant records yield zero; callers exclude such
// queries from averaging before it matters.
func RecallAtK(ranked []string, relevant map[string]struct{}, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	hits := 0
	for _, id := range ranked[:k] {
		if _, ok := relevant[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

// APAtK is average precision at k: precision sampled at every rank that
// surfaces a relevant record, normalized by min(k, len(relevant)) so a
// perfect ordering scores 1.0 even when fewer than k records are relevant.
func APAtK(ranked []string, relevant map[string]struct{}, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}

	limit := k
	if limit > len(ranked) {
		limit = len(ranked)
	}

	hits := 0
	var sum float64
	for i := 0; i < limit; i++ {
		if _, ok := relevant[ranked[i]]; ok {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}

	norm := k
	if len(relevant) < norm {
		norm = len(relevant)
	}
	return sum / float64(norm)
}
