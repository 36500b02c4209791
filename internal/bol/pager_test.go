package bol

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageResult struct {
	resp *Response
	err  error
}

// scriptedDoer replays one result per call and records the requested pages.
type scriptedDoer struct {
	script []pageResult
	pages  []string
}

func (d *scriptedDoer) Do(_ context.Context, _ string, req Request) (*Response, error) {
	d.pages = append(d.pages, req.Query.Get("page"))
	i := len(d.pages) - 1
	if i >= len(d.script) {
		return nil, errors.New("unexpected call")
	}
	return d.script[i].resp, d.script[i].err
}

func ordersPage(start, n int) pageResult {
	items := make([]any, 0, n)
	for i := range n {
		items = append(items, map[string]any{"orderId": strconv.Itoa(start + i)})
	}
	return pageResult{resp: &Response{OK: true, Status: http.StatusOK, Data: map[string]any{"orders": items}}}
}

func newOrdersPager(t *testing.T, d *scriptedDoer) *Pager {
	t.Helper()
	p, err := NewPager(d, "tok", OrdersPage, OrdersItemsPath)
	require.NoError(t, err)
	return p
}

func TestPager_StopsOnShortPage(t *testing.T) {
	d := &scriptedDoer{script: []pageResult{ordersPage(0, 50), ordersPage(50, 50), ordersPage(100, 3)}}
	p := newOrdersPager(t, d)

	items := p.CollectAll(context.Background())

	assert.Len(t, items, 103)
	assert.Equal(t, []string{"1", "2", "3"}, d.pages)
	assert.Equal(t, StopShortPage, p.Stop().Reason)
	assert.Equal(t, 3, p.Stop().Pages)

	last, ok := items[102].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "102", last["orderId"])
}

func TestPager_StopsOnEmptyPageAfterFullPage(t *testing.T) {
	d := &scriptedDoer{script: []pageResult{ordersPage(0, 50), {resp: &Response{OK: true, Status: 200, Data: map[string]any{}}}}}
	p := newOrdersPager(t, d)

	items := p.CollectAll(context.Background())

	assert.Len(t, items, 50)
	assert.Equal(t, []string{"1", "2"}, d.pages)
	assert.Equal(t, StopEmptyPage, p.Stop().Reason)
}

func TestPager_NotOKKeepsPartialResults(t *testing.T) {
	d := &scriptedDoer{script: []pageResult{
		ordersPage(0, 50),
		{resp: &Response{OK: false, Status: http.StatusInternalServerError, Text: "boom"}},
	}}
	p := newOrdersPager(t, d)

	items := p.CollectAll(context.Background())

	assert.Len(t, items, 50)
	stop := p.Stop()
	assert.Equal(t, StopNotOK, stop.Reason)
	assert.Equal(t, http.StatusInternalServerError, stop.LastStatus)
	assert.NoError(t, stop.Err)
}

func TestPager_TransportErrorKeepsPartialResults(t *testing.T) {
	rl := &RateLimitError{RetryAfter: DefaultRetryAfter}
	d := &scriptedDoer{script: []pageResult{ordersPage(0, 50), {err: rl}}}
	p := newOrdersPager(t, d)

	items := p.CollectAll(context.Background())

	assert.Len(t, items, 50)
	assert.Equal(t, StopError, p.Stop().Reason)
	assert.ErrorIs(t, p.Stop().Err, rl)
}

func TestPager_FirstPageFailureYieldsEmptySlice(t *testing.T) {
	d := &scriptedDoer{script: []pageResult{{resp: &Response{OK: false, Status: http.StatusUnauthorized}}}}
	p := newOrdersPager(t, d)

	items := p.CollectAll(context.Background())
	require.NotNil(t, items)
	assert.Empty(t, items)
}

func TestPager_ConsumerCanStopEarly(t *testing.T) {
	d := &scriptedDoer{script: []pageResult{ordersPage(0, 50), ordersPage(50, 50)}}
	p := newOrdersPager(t, d)

	seen := 0
	for range p.Items(context.Background()) {
		seen++
		if seen == 10 {
			break
		}
	}

	assert.Equal(t, 10, seen)
	assert.Equal(t, []string{"1"}, d.pages)
	assert.Equal(t, StopConsumer, p.Stop().Reason)
}

func TestPager_CancelledContextIssuesNoRequest(t *testing.T) {
	d := &scriptedDoer{}
	p := newOrdersPager(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Empty(t, p.CollectAll(ctx))
	assert.Empty(t, d.pages)
	assert.ErrorIs(t, p.Stop().Err, context.Canceled)
}

func TestPager_NonListItemsPathIsError(t *testing.T) {
	d := &scriptedDoer{script: []pageResult{{resp: &Response{OK: true, Data: map[string]any{"orders": "nope"}}}}}
	p := newOrdersPager(t, d)

	assert.Empty(t, p.CollectAll(context.Background()))
	assert.Equal(t, StopError, p.Stop().Reason)
	assert.Error(t, p.Stop().Err)
}

func TestPager_CustomPageSize(t *testing.T) {
	d := &scriptedDoer{script: []pageResult{ordersPage(0, 2), ordersPage(2, 1)}}
	p := newOrdersPager(t, d).WithPageSize(2)

	assert.Len(t, p.CollectAll(context.Background()), 3)
	assert.Equal(t, []string{"1", "2"}, d.pages)
}

func TestNewPager_RejectsBadInput(t *testing.T) {
	_, err := NewPager(nil, "tok", OrdersPage, "orders")
	require.Error(t, err)

	_, err = NewPager(&scriptedDoer{}, "tok", nil, "orders")
	require.Error(t, err)

	_, err = NewPager(&scriptedDoer{}, "tok", OrdersPage, "orders[")
	require.Error(t, err)
}
