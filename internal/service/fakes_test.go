package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/target/mmk-bol-sync/internal/bol"
)

type doResult struct {
	resp      *bol.Response
	err       error
	panicWith any
}

func okJSON(data any) doResult {
	return doResult{resp: &bol.Response{OK: true, Status: http.StatusOK, Data: data}}
}

func okText(text string) doResult {
	return doResult{resp: &bol.Response{OK: true, Status: http.StatusOK, Text: text}}
}

func status(code int) doResult {
	return doResult{resp: &bol.Response{OK: code >= 200 && code < 300, Status: code}}
}

// fakeDoer replays scripted results per "METHOD path". The last scripted result
// for a route repeats. Unscripted routes fail.
type fakeDoer struct {
	mu     sync.Mutex
	routes map[string][]doResult
	calls  []string
	tokens []string
}

func newFakeDoer() *fakeDoer {
	return &fakeDoer{routes: make(map[string][]doResult)}
}

func (d *fakeDoer) on(method, path string, results ...doResult) *fakeDoer {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := method + " " + path
	d.routes[key] = append(d.routes[key], results...)
	return d
}

func (d *fakeDoer) Do(_ context.Context, token string, req bol.Request) (*bol.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := req.Method + " " + req.Path
	d.calls = append(d.calls, key)
	d.tokens = append(d.tokens, token)

	script := d.routes[key]
	if len(script) == 0 {
		return nil, errors.New("unexpected request " + key)
	}
	next := script[0]
	if len(script) > 1 {
		d.routes[key] = script[1:]
	}
	if next.panicWith != nil {
		panic(next.panicWith)
	}
	return next.resp, next.err
}

func (d *fakeDoer) count(method, path string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := method + " " + path
	n := 0
	for _, c := range d.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (d *fakeDoer) total() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// fakeTokens hands out "<audience>:<clientID>" and fails for listed client ids.
type fakeTokens struct {
	mu    sync.Mutex
	fail  map[string]error
	calls []string
}

func (f *fakeTokens) Get(_ context.Context, audience bol.Audience, clientID, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, string(audience)+":"+clientID)
	if err := f.fail[clientID]; err != nil {
		return "", err
	}
	return string(audience) + ":" + clientID, nil
}

type recordedOutcomes struct {
	mu      sync.Mutex
	jobs    []string
	tenants []string
	runs    []string
}

func (r *recordedOutcomes) ExportJobOutcome(status string) {
	r.mu.Lock()
	r.jobs = append(r.jobs, status)
	r.mu.Unlock()
}

func (r *recordedOutcomes) TenantResult(status string) {
	r.mu.Lock()
	r.tenants = append(r.tenants, status)
	r.mu.Unlock()
}

func (r *recordedOutcomes) SyncRun(result string, _ time.Duration) {
	r.mu.Lock()
	r.runs = append(r.runs, result)
	r.mu.Unlock()
}
