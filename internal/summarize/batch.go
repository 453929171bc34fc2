package summarize

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lumisage/chatscribe/pkg/types"
)

// BatchSummarize runs the pipeline for every request with bounded
// concurrency. Output ordering always matches input ordering. A failed
// pipeline never aborts the batch: its slot holds a synthesized error result
// with Metadata.Error set, so partial success stays observable.
func (e *Engine) BatchSummarize(ctx context.Context, reqs []types.SummarizeRequest) []*types.SummaryResult {
	results := make([]*types.SummaryResult, len(reqs))

	e.metrics.ActiveBatches.Add(ctx, 1)
	defer e.metrics.ActiveBatches.Add(ctx, -1)

	var g errgroup.Group
	g.SetLimit(e.batchConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := e.Summarize(ctx, req)
			if err != nil {
				e.log.Warn("batch entry failed",
					"channel_id", req.ChannelID, "index", i, "err", err)
				res = errorResult(req, err)
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()
	return results
}

// errorResult synthesizes a SummaryResult describing a failed pipeline so
// batch output keeps one entry per input.
func errorResult(req types.SummarizeRequest, err error) *types.SummaryResult {
	meta := types.SummaryMetadata{Error: true}
	text := "Summarization failed."
	if serr, ok := types.AsError(err); ok {
		meta.ErrorCode = serr.Code
		text = serr.UserMessage
	}
	start, end := time.Time{}, time.Time{}
	if len(req.Messages) > 0 {
		start, end = timeWindow(req.Messages)
	}
	return &types.SummaryResult{
		ID:           uuid.NewString(),
		ChannelID:    req.ChannelID,
		GuildID:      req.GuildID,
		StartTime:    start,
		EndTime:      end,
		MessageCount: len(req.Messages),
		SummaryText:  text,
		Metadata:     meta,
		CreatedAt:    time.Now().UTC(),
	}
}
