package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"time"
)

const completePage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8" /><title>Authorization complete</title></head>
<body><p>Authorization complete. You can close this tab and return to the terminal.</p></body>
</html>
`

const failedPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8" /><title>Authorization failed</title></head>
<body><p>Authorization failed: %s</p></body>
</html>
`

// callbackResult is the outcome of the browser redirect.
type callbackResult struct {
	Code string
	Err  error
}

// callbackServer receives the single authorization redirect on a loopback
// address. Only the first result is kept.
type callbackServer struct {
	state  string
	result chan callbackResult
	server *http.Server
}

func newCallbackServer(state string) *callbackServer {
	cs := &callbackServer{
		state:  state,
		result: make(chan callbackResult, 1),
	}
	cs.server = &http.Server{
		Handler:           http.HandlerFunc(cs.handle),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return cs
}

// start listens on address and serves redirects in the background.
func (cs *callbackServer) start(address string) (net.Addr, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("callback listener: %w", err)
	}

	go func() {
		if err := cs.server.Serve(l); !errors.Is(err, http.ErrServerClosed) {
			cs.put(callbackResult{Err: err})
		}
	}()

	return l.Addr(), nil
}

// wait blocks until the redirect arrives or ctx is done.
func (cs *callbackServer) wait(ctx context.Context) callbackResult {
	select {
	case <-ctx.Done():
		return callbackResult{Err: fmt.Errorf("waiting for authorization: %w", ctx.Err())}
	case r := <-cs.result:
		return r
	}
}

func (cs *callbackServer) shutdown(ctx context.Context) error {
	return cs.server.Shutdown(ctx)
}

func (cs *callbackServer) put(r callbackResult) {
	select {
	case cs.result <- r:
	default:
	}
}

func (cs *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if reason := q.Get("error"); reason != "" {
		if desc := q.Get("error_description"); desc != "" {
			reason += ": " + desc
		}
		cs.fail(w, http.StatusBadRequest, fmt.Errorf("authorization declined: %s", reason))
		return
	}

	switch got := q.Get("state"); got {
	case cs.state:
	case "":
		cs.fail(w, http.StatusBadRequest, errors.New("redirect did not include state"))
		return
	default:
		cs.fail(w, http.StatusBadRequest, fmt.Errorf("state mismatch: expected %s, got %s", cs.state, got))
		return
	}

	code := q.Get("code")
	if code == "" {
		cs.fail(w, http.StatusBadRequest, errors.New("redirect did not include an authorization code"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(completePage))
	cs.put(callbackResult{Code: code})
}

func (cs *callbackServer) fail(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, failedPage, html.EscapeString(err.Error()))
	cs.put(callbackResult{Err: err})
}
