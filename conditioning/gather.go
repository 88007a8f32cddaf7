package conditioning

import (
	"context"
	"sync"
)

// Gather runs every extractor concurrently against the source image and
// returns a bundle holding the source plus whichever extractions
// succeeded. All extractors are dispatched before any is awaited, and
// the join waits for every one to settle: one extractor failing or
// timing out never blocks or discards another's result.
func Gather(ctx context.Context, sourceData []byte, mimeType string, extractors ...Extractor) *Bundle {
	bundle := NewBundle(sourceData, mimeType)
	if len(extractors) == 0 {
		return bundle
	}

	type slot struct {
		img Image
		ok  bool
	}
	results := make([]slot, len(extractors))

	var wg sync.WaitGroup
	for i, ex := range extractors {
		wg.Add(1)
		go func(i int, ex Extractor) {
			defer wg.Done()
			img, ok := ex.Extract(ctx, sourceData, mimeType)
			results[i] = slot{img: img, ok: ok}
		}(i, ex)
	}
	wg.Wait()

	for _, r := range results {
		if r.ok {
			bundle.Add(r.img)
		}
	}
	return bundle
}
