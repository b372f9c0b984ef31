package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/BasedMusa/whatsapp-sales-intelligence/internal/clients/redis"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/config"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/logger"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/repos"
	"github.com/BasedMusa/whatsapp-sales-intelligence/internal/types"
)

// PipelineService drives one end-to-end run: load -> cache-check ->
// analyze -> incrementally persist -> report. Workers only return values;
// the checkpoint accumulator is touched exclusively from this service's
// single control flow.
type PipelineService struct {
	log         *logger.Logger
	cfg         *config.Config
	chats       repos.ChatRepo
	results     repos.AnalysisRepo
	cache       redisclient.TranscriptCache
	transcripts *TranscriptService
	analyzer    *AnalyzerService

	stopRequested atomic.Bool
}

func NewPipelineService(
	log *logger.Logger,
	cfg *config.Config,
	chats repos.ChatRepo,
	results repos.AnalysisRepo,
	cache redisclient.TranscriptCache,
	transcripts *TranscriptService,
	analyzer *AnalyzerService,
) *PipelineService {
	return &PipelineService{
		log:         log.With("service", "PipelineService"),
		cfg:         cfg,
		chats:       chats,
		results:     results,
		cache:       cache,
		transcripts: transcripts,
		analyzer:    analyzer,
	}
}

// RequestStop asks the run to finish its in-flight chunk, flush, and exit.
// Safe to call from a signal handler goroutine.
func (p *PipelineService) RequestStop() {
	p.stopRequested.Store(true)
}

type assemblyOutcome struct {
	transcript types.Transcript
	fresh      bool
	err        error
}

type analysisItem struct {
	transcript types.Transcript
	fromCache  bool
}

// Run executes the full pipeline once. The returned report is non-nil
// whenever the run got past setup; err is non-nil only for failures that
// prevented the run from doing any work.
func (p *PipelineService) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: uuid.New().String(), State: StateIdle}
	start := time.Now()
	defer func() { report.Elapsed = time.Since(start) }()
	log := p.log.With("run_id", report.RunID)

	// Idle -> Loading
	p.transition(log, report, StateLoading)
	cutoff := time.Now().AddDate(0, 0, -p.cfg.ActivityWindowDays)
	chats, err := p.chats.ListUnanalyzed(ctx, nil, cutoff)
	if err != nil {
		p.transition(log, report, StateAborted)
		return report, fmt.Errorf("list unanalyzed chats: %w", err)
	}
	report.Loaded = len(chats)
	log.Info("Loaded unanalyzed conversations", "count", len(chats), "cutoff", cutoff)
	if len(chats) == 0 {
		p.transition(log, report, StateDone)
		return report, nil
	}

	// Loading -> ContentAssembly
	p.transition(log, report, StateContentAssembly)
	items := p.assemble(ctx, log, report, chats)

	// ContentAssembly -> Analyzing, with incremental persistence every
	// CheckpointInterval chunks and a final flush for the remainder.
	p.transition(log, report, StateAnalyzing)
	var checkpoint []*types.ConversationAnalysis
	var latencySum, latencyCount int64

	chunks := Chunks(items, p.cfg.AIConcurrency)
	for chunkIdx, chunk := range chunks {
		if ctx.Err() != nil || p.stopRequested.Load() {
			report.Stopped = true
			log.Warn("Stop requested, finishing after current checkpoint", "chunks_done", chunkIdx, "chunks_total", len(chunks))
			break
		}
		if p.cfg.ChunkDelay > 0 && chunkIdx > 0 {
			select {
			case <-time.After(p.cfg.ChunkDelay):
			case <-ctx.Done():
			}
		}

		outcomes := RunChunk(ctx, chunk, func(ctx context.Context, item analysisItem) AnalysisOutcome {
			out := p.analyzer.Analyze(ctx, item.transcript)
			out.FromCache = item.fromCache
			return out
		})

		for _, out := range outcomes {
			p.tally(report, out)
			if out.Failure == FailureNone {
				checkpoint = append(checkpoint, out.Result)
			}
			if out.Result != nil && out.Result.ProcessingMs > 0 {
				latencySum += out.Result.ProcessingMs
				latencyCount++
			}
		}

		if (chunkIdx+1)%p.cfg.CheckpointInterval == 0 {
			checkpoint = p.flush(ctx, log, report, checkpoint, false)
		}
	}

	// Analyzing -> Persisting: final flush of the remainder.
	p.transition(log, report, StatePersisting)
	p.flush(ctx, log, report, checkpoint, true)

	// Persisting -> Reporting -> Done
	p.transition(log, report, StateReporting)
	if latencyCount > 0 {
		report.MeanLatencyMs = latencySum / latencyCount
	}
	if report.NoDataPersisted() {
		log.Warn("Run completed with no data persisted",
			"loaded", report.Loaded,
			"quota_failures", report.QuotaFailures)
	}
	p.transition(log, report, StateDone)
	return report, nil
}

// assemble resolves every chat to a transcript, cache first. Only misses
// (and stale hits, when revalidation is on) pay for message loading and
// rendering; freshly rendered non-empty transcripts are written back to the
// cache before this stage ends.
func (p *PipelineService) assemble(ctx context.Context, log *logger.Logger, report *RunReport, chats []*types.Chat) []analysisItem {
	jids := make([]string, len(chats))
	for i, chat := range chats {
		jids[i] = chat.JID
	}

	cached, err := p.cache.GetMany(ctx, jids)
	if err != nil {
		// The cache is an optimization; losing it costs assembly time,
		// not correctness.
		log.Warn("Transcript cache read failed, treating all as misses", "error", err)
		cached = map[string]types.CacheEntry{}
	}

	var items []analysisItem
	var misses []*types.Chat
	for _, chat := range chats {
		entry, ok := cached[chat.JID]
		if ok && p.cfg.CacheRevalidate && chat.LastMessageTime.After(entry.CachedAt) {
			report.StaleCacheHits++
			ok = false
		}
		if ok {
			report.CacheHits++
			items = append(items, analysisItem{transcript: entry.Transcript, fromCache: true})
			continue
		}
		report.CacheMisses++
		misses = append(misses, chat)
	}

	outcomes := RunChunked(ctx, misses, p.cfg.IOConcurrency, 0, p.stopRequested.Load, func(ctx context.Context, chat *types.Chat) assemblyOutcome {
		messages, err := p.chats.LoadMessages(ctx, nil, chat.JID)
		if err != nil {
			return assemblyOutcome{err: fmt.Errorf("%w: chat %s: %v", ErrSourceRead, chat.JID, err)}
		}
		return assemblyOutcome{transcript: p.transcripts.Build(chat, messages), fresh: true}
	})

	now := time.Now().UTC()
	var newEntries []types.CacheEntry
	for _, out := range outcomes {
		if out.err != nil {
			// One unreadable conversation never aborts the listing;
			// it is excluded from this run and reported.
			report.SourceReadFailures++
			log.Warn("Excluding conversation after read failure", "error", out.err)
			continue
		}
		items = append(items, analysisItem{transcript: out.transcript})
		// Empty transcripts are never cached; a later run with new
		// messages rebuilds them from scratch.
		if out.transcript.Text != "" {
			newEntries = append(newEntries, EntryFor(out.transcript, now))
		}
	}

	if len(newEntries) > 0 {
		if err := p.cache.PutMany(ctx, newEntries); err != nil {
			log.Warn("Transcript cache write failed", "entries", len(newEntries), "error", err)
		}
	}

	for _, item := range items {
		if item.transcript.Text == "" {
			report.EmptyTranscripts++
		}
	}
	return items
}

// flush persists the checkpoint accumulator. Rows that fail are kept for
// the next flush attempt; on the final flush they are reported as persist
// failures instead, never dropped silently.
func (p *PipelineService) flush(ctx context.Context, log *logger.Logger, report *RunReport, checkpoint []*types.ConversationAnalysis, final bool) []*types.ConversationAnalysis {
	if len(checkpoint) == 0 {
		return nil
	}
	res, err := p.results.BulkUpsert(ctx, nil, checkpoint)
	report.Persisted += res.Succeeded
	if err != nil {
		log.Error("Checkpoint flush failed", "rows", len(checkpoint), "succeeded", res.Succeeded, "error", err)
	} else if res.Failed > 0 {
		log.Warn("Checkpoint flush had row failures", "rows", len(checkpoint), "failed", res.Failed)
	} else {
		log.Info("Checkpoint flushed", "rows", res.Succeeded, "final", final)
	}
	if res.Failed == 0 {
		return nil
	}

	failedJIDs := make(map[string]bool, len(res.PerItemErrors))
	for _, item := range res.PerItemErrors {
		failedJIDs[item.ChatJID] = true
	}
	var remaining []*types.ConversationAnalysis
	for _, row := range checkpoint {
		if failedJIDs[row.ChatJID] {
			remaining = append(remaining, row)
		}
	}
	if final {
		report.PersistFailures += len(remaining)
		for _, item := range res.PerItemErrors {
			log.Error("Result lost to persistence failure", "chat_jid", item.ChatJID, "error", item.Err)
		}
		return nil
	}
	return remaining
}

func (p *PipelineService) tally(report *RunReport, out AnalysisOutcome) {
	switch out.Failure {
	case FailureNone:
		report.Analyzed++
	case FailureQuota:
		report.QuotaFailures++
	case FailureTransient:
		report.TransientFailures++
	default:
		report.MalformedFailures++
	}
}

func (p *PipelineService) transition(log *logger.Logger, report *RunReport, next RunState) {
	log.Debug("Pipeline state transition", "from", string(report.State), "to", string(next))
	report.State = next
}
