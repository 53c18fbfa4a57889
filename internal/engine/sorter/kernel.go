package sorter

// Sort orders the arena's first sortCount input indices by ascending depth
// (front to back) into the output region, then copies input entries
// [sortCount, renderCount) after them unchanged. Depth is the clip-space z
// row of the view-projection without its constant term. Entries that share
// a depth bucket keep their input order.
func Sort(a *Arena, sortCount, renderCount int) {
	indices := a.Indices()
	sorted := a.Sorted()
	if sortCount > renderCount {
		sortCount = renderCount
	}

	if sortCount > 0 {
		sortPrefix(a, sortCount)
	}
	copy(sorted[sortCount:renderCount], indices[sortCount:renderCount])
}

func sortPrefix(a *Arena, n int) {
	vp := a.ViewProj()
	m2, m6, m10 := vp.At(2), vp.At(6), vp.At(10)

	indices := a.Indices()[:n]
	centers := a.Centers()
	depths := a.Depths()
	mapped := a.Mapped()[:n]
	freq := a.Frequencies()
	sorted := a.Sorted()[:n]

	minDepth, maxDepth := float32(0), float32(0)
	for i, idx := range indices {
		c := int(idx) * 3
		d := m2*centers.At(c) + m6*centers.At(c+1) + m10*centers.At(c+2)
		depths.Set(i, d)
		if i == 0 || d < minDepth {
			minDepth = d
		}
		if i == 0 || d > maxDepth {
			maxDepth = d
		}
	}

	buckets := len(freq)
	clear(freq)
	rng := maxDepth - minDepth
	scale := float32(0)
	if rng > 0 {
		scale = float32(buckets-1) / rng
	}
	for i := range mapped {
		b := int((depths.At(i) - minDepth) * scale)
		if b < 0 || b >= buckets {
			// NaN depths and rounding past the top bucket.
			b = min(max(b, 0), buckets-1)
		}
		mapped[i] = uint32(b)
		freq[b]++
	}

	var start uint32
	for b, f := range freq {
		freq[b] = start
		start += f
	}
	for i, idx := range indices {
		b := mapped[i]
		sorted[freq[b]] = idx
		freq[b]++
	}
}
