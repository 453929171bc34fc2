// Package schedule runs recurring channel summaries.
//
// Each configured schedule gets its own goroutine that ticks at the schedule
// interval, fetches the lookback window from Discord, summarizes it, and
// delivers the result to the channel and the history store. Schedules can be
// swapped at runtime when the config file changes.
package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lumisage/chatscribe/internal/config"
	"github.com/lumisage/chatscribe/internal/discord"
	"github.com/lumisage/chatscribe/internal/store"
	"github.com/lumisage/chatscribe/pkg/types"
)

// runTimeout bounds a single scheduled run, fetch and summarization included.
const runTimeout = 5 * time.Minute

// Fetcher retrieves channel history for a time window.
type Fetcher interface {
	FetchWindow(ctx context.Context, channelID string, window discord.Window, limit int) ([]types.Message, error)
}

// Summarizer runs the summarization pipeline.
type Summarizer interface {
	Summarize(ctx context.Context, req types.SummarizeRequest) (*types.SummaryResult, error)
}

// Publisher delivers a finished summary back to its channel.
type Publisher interface {
	Publish(channelID string, res *types.SummaryResult) error
}

// Scheduler owns the recurring summary jobs.
type Scheduler struct {
	fetcher   Fetcher
	engine    Summarizer
	publisher Publisher
	history   store.Store
	defaults  config.SummariesConfig
	log       *slog.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	baseCtx context.Context
	wg      sync.WaitGroup
}

// job is one running schedule. cancel stops its loop.
type job struct {
	cfg    config.ScheduleConfig
	cancel context.CancelFunc
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithPublisher sets the summary publisher. Without one, results are only
// written to the history store.
func WithPublisher(p Publisher) Option {
	return func(s *Scheduler) { s.publisher = p }
}

// WithHistory sets the history store scheduled summaries are saved to.
func WithHistory(st store.Store) Option {
	return func(s *Scheduler) { s.history = st }
}

// New creates a Scheduler. Jobs do not run until Start is called.
func New(fetcher Fetcher, engine Summarizer, defaults config.SummariesConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:  fetcher,
		engine:   engine,
		defaults: defaults,
		log:      slog.Default(),
		jobs:     make(map[string]*job),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start launches a job per schedule and returns. Jobs stop when ctx is
// cancelled; Stop waits for them to finish.
func (s *Scheduler) Start(ctx context.Context, schedules []config.ScheduleConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baseCtx = ctx
	for _, sched := range schedules {
		s.startLocked(sched)
	}
}

// Update replaces the running schedule set. Unchanged schedules keep their
// tickers; added, removed, and modified ones are started, stopped, or
// restarted. Safe to call from a config watcher callback.
func (s *Scheduler) Update(schedules []config.ScheduleConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.baseCtx == nil {
		return
	}

	next := make(map[string]config.ScheduleConfig, len(schedules))
	for _, sched := range schedules {
		next[sched.ChannelID] = sched
	}

	for channelID, j := range s.jobs {
		sched, ok := next[channelID]
		if ok && sched == j.cfg {
			delete(next, channelID)
			continue
		}
		j.cancel()
		delete(s.jobs, channelID)
		if ok {
			s.log.Info("schedule updated", "channel_id", channelID)
		} else {
			s.log.Info("schedule removed", "channel_id", channelID)
		}
	}

	for _, sched := range next {
		s.startLocked(sched)
	}
}

// Stop cancels all jobs and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for channelID, j := range s.jobs {
		j.cancel()
		delete(s.jobs, channelID)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) startLocked(sched config.ScheduleConfig) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.jobs[sched.ChannelID] = &job{cfg: sched, cancel: cancel}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, sched)
	}()

	s.log.Info("schedule started",
		"channel_id", sched.ChannelID,
		"interval", sched.Interval.Std(),
		"length", sched.Length,
	)
}

func (s *Scheduler) loop(ctx context.Context, sched config.ScheduleConfig) {
	ticker := time.NewTicker(sched.Interval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, sched)
		}
	}
}

// runOnce executes a single scheduled summary. Failures are logged and the
// schedule keeps ticking; a quiet channel is not an error.
func (s *Scheduler) runOnce(ctx context.Context, sched config.ScheduleConfig) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	lookback := sched.Lookback.Std()
	if lookback <= 0 {
		lookback = sched.Interval.Std()
	}
	window := discord.Window{Start: time.Now().Add(-lookback)}

	messages, err := s.fetcher.FetchWindow(ctx, sched.ChannelID, window, 0)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error("scheduled fetch failed", "channel_id", sched.ChannelID, "err", err)
		return
	}

	res, err := s.engine.Summarize(ctx, s.buildRequest(sched, messages))
	if err != nil {
		if types.IsCode(err, types.CodeInsufficientContent) {
			s.log.Debug("scheduled summary skipped, channel quiet",
				"channel_id", sched.ChannelID, "messages", len(messages))
			return
		}
		s.log.Error("scheduled summary failed", "channel_id", sched.ChannelID, "err", err)
		return
	}

	s.log.Info("scheduled summary complete",
		"channel_id", sched.ChannelID,
		"messages", res.MessageCount,
		"summary_id", res.ID,
	)

	if s.history != nil {
		if err := s.history.Save(ctx, res); err != nil {
			s.log.Warn("scheduled summary not saved", "summary_id", res.ID, "err", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(sched.ChannelID, res); err != nil {
			s.log.Error("scheduled summary not published", "channel_id", sched.ChannelID, "err", err)
		}
	}
}

func (s *Scheduler) buildRequest(sched config.ScheduleConfig, messages []types.Message) types.SummarizeRequest {
	opts := types.DefaultOptions()
	if s.defaults.MinMessages > 0 {
		opts.MinMessages = s.defaults.MinMessages
	}
	opts.IncludeBots = s.defaults.IncludeBots
	if s.defaults.Temperature != nil {
		opts.Temperature = *s.defaults.Temperature
	}

	length := types.SummaryLength(sched.Length)
	if length == "" {
		length = types.SummaryLength(s.defaults.DefaultLength)
	}
	if length.IsValid() {
		opts.Length = length
	}

	return types.SummarizeRequest{
		Messages:  messages,
		Options:   opts,
		ChannelID: sched.ChannelID,
		GuildID:   sched.GuildID,
	}
}
