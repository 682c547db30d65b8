package pipeline

import (
	"context"
	"errors"

	"github.com/TobiSchelling/NLStats/internal/collect"
)

var errNoCache = errors.New("no local cache configured")

// LocalResult lists what a cache-only run wrote.
type LocalResult struct {
	Items         int
	RawPath       string
	ProcessedPath string
	Process       *ProcessResult
}

// PullLocal fetches every item from src into a raw cache file, then
// normalizes and converts them into a processed cache file. No collection
// event is opened.
func (p *Pipeline) PullLocal(ctx context.Context, src Source) (*LocalResult, error) {
	if p.opts.Cache == nil {
		return nil, errNoCache
	}

	items, err := src.FetchAllItems(ctx)
	if err != nil {
		return nil, &StageError{Stage: "fetch", Err: err}
	}
	rawPath, err := p.opts.Cache.WriteRaw(items)
	if err != nil {
		return nil, err
	}

	res, err := p.processLocal(items)
	if err != nil {
		return nil, err
	}
	res.RawPath = rawPath
	return res, nil
}

// ProcessLocal normalizes the newest raw cache file into a processed one.
func (p *Pipeline) ProcessLocal(ctx context.Context) (*LocalResult, error) {
	if p.opts.Cache == nil {
		return nil, errNoCache
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items, rawPath, err := p.opts.Cache.ReadLatestRaw()
	if err != nil {
		return nil, err
	}
	res, err := p.processLocal(items)
	if err != nil {
		return nil, err
	}
	res.RawPath = rawPath
	return res, nil
}

func (p *Pipeline) processLocal(items []collect.Item) (*LocalResult, error) {
	res, err := p.Transform(items)
	if err != nil {
		return nil, &StageError{Stage: "process", Err: err}
	}
	path, err := p.opts.Cache.WriteProcessed(res.Rows)
	if err != nil {
		return nil, err
	}
	return &LocalResult{Items: len(items), ProcessedPath: path, Process: res}, nil
}
