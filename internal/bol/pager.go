package bol

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/jmespath-community/go-jmespath"
)

// DefaultPageSize is the upstream page size for list endpoints.
const DefaultPageSize = 50

// StopReason says why a pager stopped requesting pages.
type StopReason string

const (
	StopNone      StopReason = ""
	StopShortPage StopReason = "short_page"
	StopEmptyPage StopReason = "empty_page"
	StopNotOK     StopReason = "not_ok"
	StopError     StopReason = "error"
	StopConsumer  StopReason = "consumer"
)

// StopInfo describes how the last iteration ended.
type StopInfo struct {
	Reason     StopReason
	Pages      int
	LastStatus int
	Err        error
}

// PageRequest builds the request for a 1-based page number.
type PageRequest func(page int) Request

// Pager walks a page-numbered list endpoint until a page comes back short,
// empty, or unsuccessful. Items are produced lazily.
type Pager struct {
	client   Doer
	token    string
	build    PageRequest
	search   func(any) (any, error)
	pageSize int

	stop StopInfo
}

// NewPager compiles itemsPath, a JMESPath expression selecting the item list
// from each page document.
func NewPager(client Doer, token string, build PageRequest, itemsPath string) (*Pager, error) {
	if client == nil {
		return nil, errors.New("pager: client is required")
	}
	if build == nil {
		return nil, errors.New("pager: page builder is required")
	}
	compiled, err := jmespath.Compile(itemsPath)
	if err != nil {
		return nil, fmt.Errorf("pager: compile items path %q: %w", itemsPath, err)
	}
	return &Pager{
		client:   client,
		token:    token,
		build:    build,
		search:   compiled.Search,
		pageSize: DefaultPageSize,
	}, nil
}

// WithPageSize overrides the expected full-page size.
func (p *Pager) WithPageSize(n int) *Pager {
	if n > 0 {
		p.pageSize = n
	}
	return p
}

// Items yields every item across pages. Errors end the sequence silently; call
// Stop afterwards to inspect why iteration ended.
func (p *Pager) Items(ctx context.Context) iter.Seq[any] {
	return func(yield func(any) bool) {
		p.stop = StopInfo{}
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				p.finish(StopError, 0, err)
				return
			}

			resp, err := p.client.Do(ctx, p.token, p.build(page))
			p.stop.Pages = page
			if err != nil {
				p.finish(StopError, 0, err)
				return
			}
			if !resp.OK {
				p.finish(StopNotOK, resp.Status, nil)
				return
			}

			items, err := p.extract(resp.Data)
			if err != nil {
				p.finish(StopError, resp.Status, err)
				return
			}
			if len(items) == 0 {
				p.finish(StopEmptyPage, resp.Status, nil)
				return
			}
			for _, item := range items {
				if !yield(item) {
					p.finish(StopConsumer, resp.Status, nil)
					return
				}
			}
			if len(items) < p.pageSize {
				p.finish(StopShortPage, resp.Status, nil)
				return
			}
		}
	}
}

// CollectAll drains Items into a slice. It never returns nil.
func (p *Pager) CollectAll(ctx context.Context) []any {
	out := make([]any, 0, p.pageSize)
	for item := range p.Items(ctx) {
		out = append(out, item)
	}
	return out
}

// Stop reports how the most recent iteration ended.
func (p *Pager) Stop() StopInfo {
	return p.stop
}

func (p *Pager) extract(data any) ([]any, error) {
	if data == nil {
		return nil, nil
	}
	res, err := p.search(data)
	if err != nil {
		return nil, fmt.Errorf("pager: evaluate items path: %w", err)
	}
	switch v := res.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	default:
		return nil, fmt.Errorf("pager: items path selected %T, want list", res)
	}
}

func (p *Pager) finish(reason StopReason, status int, err error) {
	p.stop.Reason = reason
	p.stop.LastStatus = status
	p.stop.Err = err
}
