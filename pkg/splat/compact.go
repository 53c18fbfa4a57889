package splat

// Swap exchanges every attribute of splats i and j. It returns the number of
// quantized center components clamped when a center moved into a bucket
// that cannot represent it.
func (b *Buffer) Swap(i, j int) int {
	b.checkIndex(i)
	b.checkIndex(j)
	if i == j {
		return 0
	}

	clamped := 0
	if b.level == Quantized {
		ci, cj := b.Center(i), b.Center(j)
		clamped += b.setCenter(i, cj)
		clamped += b.setCenter(j, ci)
	} else {
		b.swapBytes(b.centerOffset(), b.widths.center, i, j)
	}
	b.swapBytes(b.scaleOffset(), b.widths.scale, i, j)
	b.swapBytes(b.colorOffset(), b.widths.color, i, j)
	b.swapBytes(b.rotationOffset(), b.widths.rotation, i, j)

	if !b.covStale && len(b.covariances) >= b.count*CovarianceFloats {
		ci := b.covariances[i*CovarianceFloats : (i+1)*CovarianceFloats]
		cj := b.covariances[j*CovarianceFloats : (j+1)*CovarianceFloats]
		for k := range ci {
			ci[k], cj[k] = cj[k], ci[k]
		}
	}
	return clamped
}

func (b *Buffer) swapBytes(base, width, i, j int) {
	a := b.data[base+i*width : base+(i+1)*width]
	c := b.data[base+j*width : base+(j+1)*width]
	for k := range a {
		a[k], c[k] = c[k], a[k]
	}
}

// CompactStats describes the effect of Compact.
type CompactStats struct {
	CountBefore int
	CountAfter  int
	BytesBefore int
	BytesAfter  int
	Clamped     int
}

// Removed returns the number of splats dropped.
func (s CompactStats) Removed() int { return s.CountBefore - s.CountAfter }

// Compact drops every splat whose alpha is at or below minAlpha. Survivors
// are partitioned to the front by swapping with the last live splat, so
// their relative order is not preserved. The region is then shrunk so the
// size invariant holds for the new count.
func (b *Buffer) Compact(minAlpha uint8) CompactStats {
	stats := CompactStats{CountBefore: b.count, BytesBefore: len(b.data)}

	live := b.count
	for i := 0; i < live; {
		if b.Alpha(i) > minAlpha {
			i++
			continue
		}
		live--
		stats.Clamped += b.Swap(i, live)
	}

	b.truncate(live)
	stats.CountAfter = b.count
	stats.BytesAfter = len(b.data)
	return stats
}

// truncate keeps the first n splats and relays out the body in place.
// Each component's new range ends at or before the old start of the next
// component, so copying front to back never clobbers unread data.
func (b *Buffer) truncate(n int) {
	if n == b.count {
		return
	}
	old := *b
	b.count = n
	if b.level == Quantized {
		b.bucketCount = (n + b.bucketSize - 1) / b.bucketSize
	}

	copy(b.data[b.scaleOffset():], old.data[old.scaleOffset():old.scaleOffset()+n*b.widths.scale])
	copy(b.data[b.colorOffset():], old.data[old.colorOffset():old.colorOffset()+n*b.widths.color])
	copy(b.data[b.rotationOffset():], old.data[old.rotationOffset():old.rotationOffset()+n*b.widths.rotation])
	if b.level == Quantized {
		copy(b.data[b.bucketOffset():], old.data[old.bucketOffset():old.bucketOffset()+b.bucketCount*BytesPerBucket])
	}

	b.data = b.data[:b.expectedSize()]
	b.writeHeader()
	if len(b.covariances) >= n*CovarianceFloats {
		b.covariances = b.covariances[:n*CovarianceFloats]
	}
}
