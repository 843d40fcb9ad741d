package pipeline

// applyBatched runs op over fixed-size slices of items in order, invoking
// progress with the percentage completed after every batch. An empty input
// reports 100% immediately without calling op. The first op error aborts the
// remaining batches.
func applyBatched[T any](items []T, size int, op func(batch []T) error, progress func(pct float64)) error {
	if len(items) == 0 {
		if progress != nil {
			progress(100)
		}
		return nil
	}
	if size <= 0 {
		size = len(items)
	}

	total := len(items)
	for start := 0; start < total; start += size {
		end := min(start+size, total)
		if err := op(items[start:end]); err != nil {
			return err
		}
		if progress != nil {
			progress(float64(end) / float64(total) * 100)
		}
	}

	return nil
}
