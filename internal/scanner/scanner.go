// Package scanner drives the incremental scan pipeline: it consumes a photo
// stream, reuses cached recognition results, dispatches cache misses to the
// recognition gateway under a concurrency and admission budget, applies the
// human correction overlay and aggregates matches per person.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kozaktomas/face-scanner/internal/compreface"
	"github.com/kozaktomas/face-scanner/internal/fingerprint"
	"github.com/kozaktomas/face-scanner/internal/library"
	"github.com/kozaktomas/face-scanner/internal/store"
)

// Gateway is the external recognition capability consumed by the scanner.
type Gateway interface {
	Recognize(ctx context.Context, imagePath string) (*compreface.RecognizeResult, error)
}

// FileStream produces the photo stream for one scan run. The run id is
// passed in so directory cache entries written during the walk can record
// which run produced them.
type FileStream func(ctx context.Context, scanID string) <-chan library.File

// ProgressInfo is emitted after every completed item so long scans can
// render live feedback.
type ProgressInfo struct {
	Processed   int
	Cached      int
	Matched     int
	NewMatched  int
	Total       int
	CurrentFile string
}

// VerboseRecord is an optional per-item trace for detailed output.
type VerboseRecord struct {
	Path     string
	Hash     string
	CacheHit bool
	Matches  []store.Recognition
}

// PersonMatch is one photo matched to one person, deduplicated per photo:
// multiple faces of the same person on one photo contribute a single entry.
type PersonMatch struct {
	Path       string
	Hash       string
	Confidence float64
	Status     store.CorrectionStatus
}

// ScanOptions configures one scan invocation.
type ScanOptions struct {
	// Total is the estimated item count, used for progress reporting only.
	Total int
	// Threshold is the minimum confidence (percent) for a recognition to
	// count as a match. Manually added people always pass.
	Threshold float64
	// NewScanLimit caps how many cache misses are sent to the gateway.
	// 0 means unlimited.
	NewScanLimit int
	// ForceRescan bypasses the photo cache and re-runs recognition.
	ForceRescan bool
	// Concurrency is the number of items processed in parallel. 1 gives
	// strictly sequential processing; the pipeline is the same either way.
	Concurrency int
	// OnProgress, when set, receives an event after every item.
	OnProgress func(ProgressInfo)
	// OnVerbose, when set, receives a per-item trace record.
	OnVerbose func(VerboseRecord)
}

// ScanResult aggregates one scan run.
type ScanResult struct {
	ScanID          string
	ByPerson        map[string][]PersonMatch
	PhotosProcessed int
	PhotosCached    int
	MatchesFound    int
	NewMatched      int
	NewScans        int
	// CreatedPeople lists identities implicitly created from gateway names
	// during this run. Creation is a side effect worth surfacing: a typo in
	// the trained subject name becomes a permanent identity here.
	CreatedPeople []store.Person
	LimitReached  bool
	Errors        []error
}

// Scanner is the scan orchestrator. It is the sole writer of photo
// recognitions; corrections are written elsewhere through the store's
// shared merge rule.
type Scanner struct {
	store   store.Store
	gateway Gateway
}

// New creates a scanner on an open store and a configured gateway.
func New(st store.Store, gateway Gateway) *Scanner {
	return &Scanner{store: st, gateway: gateway}
}

// itemResult is the outcome of processing a single file.
type itemResult struct {
	file     library.File
	hash     string
	cacheHit bool
	skipped  bool
	matches  []store.Recognition
	created  []store.Person
	err      error
}

// Scan consumes the file stream and produces the per-person match mapping.
// A scan run record is always finalized, even when the run stops early at
// the new-scan limit or every item fails; only precondition failures abort
// before a run exists. Per-item errors never escape their item.
func (s *Scanner) Scan(ctx context.Context, sourcePaths []string, stream FileStream, opts ScanOptions) (*ScanResult, error) {
	if s.store == nil {
		return nil, errors.New("no store configured")
	}
	if s.gateway == nil {
		return nil, errors.New("no recognition gateway configured")
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	run, err := s.store.StartScan(ctx, sourcePaths)
	if err != nil {
		return nil, fmt.Errorf("failed to start scan run: %w", err)
	}
	files := stream(ctx, run.ID)

	result := &ScanResult{
		ScanID:   run.ID,
		ByPerson: make(map[string][]PersonMatch),
	}

	limiter := newScanLimiter(opts.NewScanLimit)
	sem := make(chan struct{}, concurrency)
	// The buffer bounds pending completions; together with the semaphore it
	// keeps memory flat regardless of upstream stream size.
	resultsChan := make(chan itemResult, 2*concurrency)

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(resultsChan)
		}()

		for f := range files {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			// Checked after the slot is acquired: under sequential
			// processing the previous item has fully settled, including a
			// failed attempt handing its permit back. Once the budget is
			// gone there is no point pulling more of the stream; in-flight
			// items drain to completion.
			if limiter.Exhausted() {
				<-sem
				return
			}
			wg.Add(1)
			go func(f library.File) {
				defer wg.Done()
				defer func() { <-sem }()
				resultsChan <- s.processItem(ctx, f, run.ID, limiter, opts)
			}(f)
		}
	}()

	// Completions are handled in arrival order, not submission order.
	seenPeople := make(map[string]bool)
	for item := range resultsChan {
		s.aggregate(result, item, seenPeople, opts)
	}

	if opts.NewScanLimit > 0 && limiter.Exhausted() {
		result.LimitReached = true
	}

	finishErr := s.store.FinishScan(ctx, run.ID, store.ScanCounts{
		PhotosProcessed: result.PhotosProcessed,
		PhotosCached:    result.PhotosCached,
		MatchesFound:    result.MatchesFound,
	})
	if finishErr != nil {
		result.Errors = append(result.Errors, fmt.Errorf("failed to finalize scan run: %w", finishErr))
	}

	return result, nil
}

// aggregate folds one completed item into the result. Safe to apply in any
// completion order: every counter and map update is commutative.
func (s *Scanner) aggregate(result *ScanResult, item itemResult, seenPeople map[string]bool, opts ScanOptions) {
	if item.skipped {
		return
	}

	result.PhotosProcessed++

	switch {
	case item.err != nil:
		// An item failure contributes nothing: no match, not cached.
		result.Errors = append(result.Errors, fmt.Errorf("%s: %w", item.file.Path, item.err))
	default:
		if item.cacheHit {
			result.PhotosCached++
		} else {
			result.NewScans++
		}
		for _, p := range item.created {
			if !seenPeople[p.ID] {
				seenPeople[p.ID] = true
				result.CreatedPeople = append(result.CreatedPeople, p)
			}
		}
		if len(item.matches) > 0 {
			result.MatchesFound++
			if !item.cacheHit {
				result.NewMatched++
			}
			perPerson := make(map[string]bool)
			for _, m := range item.matches {
				if perPerson[m.PersonID] {
					continue
				}
				perPerson[m.PersonID] = true
				result.ByPerson[m.PersonName] = append(result.ByPerson[m.PersonName], PersonMatch{
					Path:       item.file.Path,
					Hash:       item.hash,
					Confidence: m.Confidence,
					Status:     statusFor(m),
				})
			}
		}
		if opts.OnVerbose != nil {
			opts.OnVerbose(VerboseRecord{
				Path:     item.file.Path,
				Hash:     item.hash,
				CacheHit: item.cacheHit,
				Matches:  item.matches,
			})
		}
	}

	if opts.OnProgress != nil {
		opts.OnProgress(ProgressInfo{
			Processed:   result.PhotosProcessed,
			Cached:      result.PhotosCached,
			Matched:     result.MatchesFound,
			NewMatched:  result.NewMatched,
			Total:       opts.Total,
			CurrentFile: item.file.Name,
		})
	}
}

func statusFor(m store.Recognition) store.CorrectionStatus {
	if m.SearchMethod == store.SearchManual {
		return store.StatusManual
	}
	return store.StatusPending
}

// processItem runs the per-item pipeline: hash, cache lookup, gateway call
// under a reserved permit, persistence, correction overlay and threshold
// filter. Every failure is contained in the returned item.
func (s *Scanner) processItem(ctx context.Context, f library.File, scanID string, limiter *scanLimiter, opts ScanOptions) itemResult {
	item := itemResult{file: f}

	fp, err := fingerprint.Compute(f.Path)
	if err != nil {
		item.err = err
		return item
	}
	item.hash = fp.Digest

	var rec *store.PhotoRecord
	if !opts.ForceRescan {
		rec, err = s.store.GetPhoto(ctx, fp.Digest)
		if err != nil {
			item.err = fmt.Errorf("cache lookup: %w", err)
			return item
		}
	}

	if rec != nil {
		// Any existing record is a cache hit. Refresh its path and scan
		// lineage so moved files stay findable.
		item.cacheHit = true
		err = s.store.SavePhoto(ctx, store.SavePhotoParams{
			Hash:          fp.Digest,
			Path:          f.Path,
			FileSize:      fp.Size,
			ScanID:        scanID,
			Recognitions:  rec.Recognitions,
			PhotoDate:     f.PhotoDate,
			FacesDetected: rec.FacesDetected,
		})
		if err != nil {
			item.err = fmt.Errorf("cache refresh: %w", err)
			return item
		}
	} else {
		if !limiter.TryReserve() {
			item.skipped = true
			return item
		}
		rec, err = s.scanNew(ctx, f, fp, scanID, &item)
		if err != nil {
			limiter.Release()
			item.err = err
			return item
		}
	}

	item.matches = filterByThreshold(rec.EffectiveMatches(), opts.Threshold)
	return item
}

// scanNew sends one cache miss to the gateway and persists the outcome.
func (s *Scanner) scanNew(ctx context.Context, f library.File, fp fingerprint.Fingerprint, scanID string, item *itemResult) (*store.PhotoRecord, error) {
	recognized, err := s.gateway.Recognize(ctx, f.Path)
	if err != nil {
		return nil, fmt.Errorf("recognition: %w", err)
	}

	var recognitions []store.Recognition
	for _, m := range recognized.Matches {
		// The gateway reports subjects by name only. Unknown names become
		// new identities here, and nowhere else.
		person, created, err := s.store.EnsurePerson(ctx, m.Subject)
		if err != nil {
			return nil, fmt.Errorf("resolve person %q: %w", m.Subject, err)
		}
		if created {
			item.created = append(item.created, person)
		}
		recognitions = append(recognitions, store.Recognition{
			PersonID:     person.ID,
			PersonName:   person.Name,
			Confidence:   m.Similarity * 100,
			FaceID:       m.FaceID,
			BoundingBox:  []float64{m.Box.XMin, m.Box.YMin, m.Box.XMax, m.Box.YMax},
			SearchMethod: store.SearchRecognition,
		})
	}

	err = s.store.SavePhoto(ctx, store.SavePhotoParams{
		Hash:          fp.Digest,
		Path:          f.Path,
		FileSize:      fp.Size,
		ScanID:        scanID,
		Recognitions:  recognitions,
		PhotoDate:     f.PhotoDate,
		FacesDetected: recognized.FacesDetected,
	})
	if err != nil {
		return nil, fmt.Errorf("persist photo: %w", err)
	}
	if err := s.store.AppendRecognitionHistory(ctx, fp.Digest, scanID, recognitions); err != nil {
		return nil, fmt.Errorf("persist history: %w", err)
	}

	// Re-read so a force-rescan of a known photo picks up its existing
	// correction overlay and canonical timestamps.
	rec, err := s.store.GetPhoto(ctx, fp.Digest)
	if err != nil {
		return nil, fmt.Errorf("reload photo: %w", err)
	}
	if rec == nil {
		return nil, errors.New("photo record missing after save")
	}
	return rec, nil
}

// filterByThreshold keeps recognitions at or above the confidence floor.
// Manually added entries are human decisions and always pass.
func filterByThreshold(matches []store.Recognition, threshold float64) []store.Recognition {
	var out []store.Recognition
	for _, m := range matches {
		if m.SearchMethod == store.SearchManual || m.Confidence >= threshold {
			out = append(out, m)
		}
	}
	return out
}
