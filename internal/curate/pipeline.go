package curate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"matscout-engine/internal/domain"
	"matscout-engine/internal/exhaust"
	"matscout-engine/internal/priority"
	"matscout-engine/internal/quota"
	"matscout-engine/internal/score"
	"matscout-engine/internal/search"
	"matscout-engine/internal/store"
)

// activeCutoff splits accepted videos into auto-published and
// human-review buckets.
const activeCutoff = 85

// channelCacheAge bounds how stale a remembered channel probe may be.
// Subscriber counts move slowly; a week-old count lands in the same
// authority tier.
const channelCacheAge = 7 * 24 * time.Hour

type SearchAPI interface {
	Search(ctx context.Context, query string, maxResults int) ([]domain.VideoCandidate, error)
	Details(ctx context.Context, videoID string) (domain.VideoDetails, error)
}

type Analyzer interface {
	Classify(ctx context.Context, cand domain.VideoCandidate) (domain.VideoAnalysis, error)
}

type Prober interface {
	ProbeChannel(ctx context.Context, channelID string) (search.ChannelInfo, error)
}

// ProgressFunc receives human-readable pipeline progress. The worker
// bridges it onto stdout; tests collect it in a slice.
type ProgressFunc func(icon, message, severity string)

func NopProgress(string, string, string) {}

// Tiers holds the instructor tier maps keyed by lowercased name.
type Tiers struct {
	Elite      map[string]bool
	Recognized map[string]bool
	Solid      map[string]bool
}

func TiersFromLists(elite, recognized, solid []string) Tiers {
	set := func(names []string) map[string]bool {
		m := make(map[string]bool, len(names))
		for _, n := range names {
			n = strings.ToLower(strings.TrimSpace(n))
			if n != "" {
				m[n] = true
			}
		}
		return m
	}
	return Tiers{Elite: set(elite), Recognized: set(recognized), Solid: set(solid)}
}

// Pipeline is the worker-side curation loop: priorities in, accepted
// videos out. Everything it talks to is injected so the loop itself stays
// testable without a network.
type Pipeline struct {
	DB       *sql.DB
	Search   SearchAPI
	Analyzer Analyzer
	Prober   Prober // nil disables channel probing
	Selector *priority.Selector
	Tracker  *exhaust.Tracker
	Ledger   *quota.Ledger
	Emit     ProgressFunc

	BatchSize   int
	MaxResults  int
	MinDuration int // seconds
	MaxDuration int
	Threshold   int
	Parallel    int

	Tiers Tiers
}

// Run executes one curation run. Quota exhaustion ends it early but
// cleanly: the summary so far is returned with a nil error and the run
// counts as completed. Only infrastructure failures return an error.
func (p *Pipeline) Run(ctx context.Context, runID string) (domain.RunSummary, error) {
	if p.Emit == nil {
		p.Emit = NopProgress
	}
	var sum domain.RunSummary

	used0, err := p.Ledger.Used(ctx)
	if err != nil {
		return sum, fmt.Errorf("read quota: %w", err)
	}

	priorities, err := p.Selector.TopPriorities(ctx, p.BatchSize)
	if err != nil {
		return sum, fmt.Errorf("select priorities: %w", err)
	}
	if len(priorities) == 0 {
		p.Emit("idle", "no techniques need new coverage", "info")
	}

loop:
	for _, pr := range priorities {
		p.Emit("target", fmt.Sprintf("targeting %s (priority %.0f, gap %.0f)", pr.Technique, pr.Score, pr.Gap), "info")

		for _, q := range pr.Queries() {
			cands, err := p.Search.Search(ctx, q.Term, p.MaxResults)
			if errors.Is(err, quota.ErrExhausted) {
				p.Emit("quota", "daily search quota exhausted, closing run with partial results", "warn")
				break loop
			}
			if err != nil {
				p.Emit("search", fmt.Sprintf("search %q failed: %v", q.Term, err), "warn")
				continue
			}

			added, quotaHit := p.processBatch(ctx, runID, pr, cands, &sum)
			if q.Instructor != "" {
				p.noteMiningOutcome(ctx, q.Instructor, added)
			}
			if quotaHit {
				p.Emit("quota", "daily detail quota exhausted, closing run with partial results", "warn")
				break loop
			}
		}
	}

	if used, err := p.Ledger.Used(ctx); err == nil {
		sum.QuotaUsed = used - used0
		if sum.QuotaUsed < 0 { // the UTC day rolled over mid-run
			sum.QuotaUsed = used
		}
	}

	p.Emit("done", fmt.Sprintf("run finished: %d analyzed, %d added, %d rejected, %d duplicates",
		sum.Analyzed, sum.Added, sum.Rejected, sum.Duplicates), "info")
	return sum, nil
}

// processBatch fans one search result page across bounded workers.
// Returns how many candidates were inserted, and whether the quota ran
// out mid-batch.
func (p *Pipeline) processBatch(ctx context.Context, runID string, pr domain.CoveragePriority, cands []domain.VideoCandidate, sum *domain.RunSummary) (int, bool) {
	var mu sync.Mutex
	added := 0

	g, gctx := errgroup.WithContext(ctx)
	limit := p.Parallel
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, cand := range cands {
		cand := cand
		g.Go(func() error {
			out := p.evaluate(gctx, runID, pr, cand)
			if out == outcomeQuota {
				return quota.ErrExhausted // cancels the group
			}
			if out == outcomeAborted {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			sum.Analyzed++
			switch out {
			case outcomeAdded:
				sum.Added++
				added++
			case outcomeRejected:
				sum.Rejected++
			case outcomeDuplicate:
				sum.Duplicates++
			}
			return nil
		})
	}

	err := g.Wait()
	return added, errors.Is(err, quota.ErrExhausted)
}

type outcome int

const (
	outcomeAdded outcome = iota
	outcomeRejected
	outcomeDuplicate
	outcomeSkipped // local error, candidate dropped, loop continues
	outcomeQuota
	outcomeAborted // context gone before the candidate was examined
)

func (p *Pipeline) evaluate(ctx context.Context, runID string, pr domain.CoveragePriority, cand domain.VideoCandidate) outcome {
	if ctx.Err() != nil {
		return outcomeAborted
	}

	// Dedup pre-check before any quota is spent on details. The unique
	// index still backstops the insert below.
	exists, err := store.VideoExists(ctx, p.DB, cand.SourceID)
	if err != nil {
		p.Emit("store", fmt.Sprintf("dedup check for %s failed: %v", cand.SourceID, err), "warn")
		return outcomeSkipped
	}
	if exists {
		return outcomeDuplicate
	}

	det, err := p.Search.Details(ctx, cand.SourceID)
	if errors.Is(err, quota.ErrExhausted) {
		return outcomeQuota
	}
	if err != nil {
		if ctx.Err() != nil {
			return outcomeAborted
		}
		p.Emit("detail", fmt.Sprintf("details for %s failed: %v", cand.SourceID, err), "warn")
		return outcomeSkipped
	}
	cand.DurationSec = det.DurationSec
	cand.ViewCount = det.ViewCount
	cand.LikeCount = det.LikeCount

	if cand.DurationSec < p.MinDuration || cand.DurationSec > p.MaxDuration {
		p.Emit("filter", fmt.Sprintf("%q filtered: %ds outside %d-%ds window",
			cand.Title, cand.DurationSec, p.MinDuration, p.MaxDuration), "info")
		return outcomeRejected
	}

	an, err := p.Analyzer.Classify(ctx, cand)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeAborted
		}
		p.Emit("analysis", fmt.Sprintf("analysis of %q failed: %v", cand.Title, err), "warn")
		return outcomeSkipped
	}
	if !an.IsInstructional {
		p.Emit("filter", fmt.Sprintf("%q rejected: not instructional", cand.Title), "info")
		return outcomeRejected
	}

	sctx, err := p.scoreContext(ctx, cand, an, pr)
	if err != nil {
		p.Emit("store", fmt.Sprintf("scoring context for %q failed: %v", cand.Title, err), "warn")
		return outcomeSkipped
	}

	dec := score.Score(cand, an, sctx)
	if !dec.Accepted {
		p.Emit("score", fmt.Sprintf("%q scored %d/%d: rejected", cand.Title, dec.Final, dec.Threshold), "info")
		return outcomeRejected
	}

	status := "pending_review"
	if dec.Final >= activeCutoff {
		status = "active"
	}
	tags, _ := json.Marshal([]string{an.TechniqueType, an.GiOrNogi, an.SkillLevel})

	inserted, err := store.InsertVideoIgnore(ctx, p.DB, store.VideoInsert{
		SourceID:         cand.SourceID,
		Title:            cand.Title,
		Channel:          cand.Channel,
		Technique:        an.Technique,
		TechniqueType:    an.TechniqueType,
		PositionCategory: an.PositionCategory,
		GiOrNogi:         an.GiOrNogi,
		QualityScore:     an.QualityScore,
		SkillLevel:       an.SkillLevel,
		Status:           status,
		TagsJSON:         string(tags),
		DurationSec:      cand.DurationSec,
		ThumbnailURL:     cand.ThumbnailURL,
		RunID:            runID,
	})
	if err != nil {
		p.Emit("store", fmt.Sprintf("insert of %q failed: %v", cand.Title, err), "warn")
		return outcomeSkipped
	}
	if !inserted {
		// lost an insert race; the constraint absorbed it
		return outcomeDuplicate
	}

	p.Emit("accept", fmt.Sprintf("added %q (%s, score %d, %s)", cand.Title, an.Technique, dec.Final, status), "info")
	return outcomeAdded
}

// scoreContext resolves every external input the pure scorer needs.
func (p *Pipeline) scoreContext(ctx context.Context, cand domain.VideoCandidate, an domain.VideoAnalysis, pr domain.CoveragePriority) (score.Context, error) {
	covered, err := store.CoverageCount(ctx, p.DB, an.Technique)
	if err != nil {
		return score.Context{}, err
	}
	angles, err := store.AngleCount(ctx, p.DB, an.Technique, an.TechniqueType)
	if err != nil {
		return score.Context{}, err
	}

	instructor := an.InstructorName
	if instructor == "" {
		instructor = cand.Channel
	}
	fb, hasFB, err := store.FeedbackScore(ctx, p.DB, instructor, an.Technique)
	if err != nil {
		return score.Context{}, err
	}

	sctx := score.Context{
		EliteInstructors:      p.Tiers.Elite,
		RecognizedInstructors: p.Tiers.Recognized,
		SolidInstructors:      p.Tiers.Solid,
		CoverageCount:         covered,
		AngleCount:            angles,
		HasFeedback:           hasFB,
		FeedbackScore:         fb,
		Threshold:             p.Threshold,
	}

	// The analyzed technique may not be the one the priority targeted;
	// prefer its own demand row when one exists.
	sig, found, err := store.GetDemandSignal(ctx, p.DB, an.Technique)
	if err != nil {
		return score.Context{}, err
	}
	if found {
		sctx.Emerging = sig.Emerging
		sctx.DemandScore = int(priority.DemandScore(sig))
		sctx.CoverageTarget = sig.TargetMin
	} else {
		sctx.Emerging = pr.Emerging
		sctx.DemandScore = int(pr.Demand)
	}

	if p.Prober != nil && cand.ChannelID != "" {
		if cc, ok, err := store.GetChannelCache(ctx, p.DB, cand.ChannelID, channelCacheAge); err == nil && ok {
			sctx.ChannelSubscribers = cc.Subscribers
			sctx.ChannelVerified = cc.Verified
		} else if info, perr := p.Prober.ProbeChannel(ctx, cand.ChannelID); perr == nil {
			sctx.ChannelSubscribers = info.Subscribers
			sctx.ChannelVerified = info.Verified
			_ = store.PutChannelCache(ctx, p.DB, store.ChannelCache{
				ChannelID:   cand.ChannelID,
				Title:       info.Title,
				Subscribers: info.Subscribers,
				Verified:    info.Verified,
			})
		}
		// probe failure leaves the instructor "unknown", nothing more
	}

	return sctx, nil
}

// noteMiningOutcome feeds the exhaustion tracker after an
// instructor-scoped query: an add resets the counter, nothing new
// increments it.
func (p *Pipeline) noteMiningOutcome(ctx context.Context, instructor string, added int) {
	if added > 0 {
		if err := p.Tracker.RecordSuccess(ctx, instructor); err != nil {
			p.Emit("exhaust", fmt.Sprintf("reset exhaustion for %s failed: %v", instructor, err), "warn")
		}
		return
	}
	if err := p.Tracker.RecordEmpty(ctx, instructor); err != nil {
		p.Emit("exhaust", fmt.Sprintf("record empty search for %s failed: %v", instructor, err), "warn")
	}
}
