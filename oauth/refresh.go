// Package oauth supplies the access token sent in the socket authentication
// envelope. A token comes from a fixed value or from a file that is re-read on
// a jittered schedule, so a rotated secret is picked up without a restart.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ErrEmptyToken is returned when a token source yields no token.
var ErrEmptyToken = errors.New("oauth: empty access token")

// RefreshFunc fetches the current token.
type RefreshFunc func(ctx context.Context) (*oauth2.Token, error)

// FileToken reads the access token from path. Surrounding whitespace is ignored.
func FileToken(path string) RefreshFunc {
	return func(_ context.Context) (*oauth2.Token, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
		at := strings.TrimSpace(string(b))
		if at == "" {
			return nil, fmt.Errorf("%w in %s", ErrEmptyToken, path)
		}
		return &oauth2.Token{AccessToken: at}, nil
	}
}

// Refresher caches the latest token and implements oauth2.TokenSource.
type Refresher struct {
	name  string
	fetch RefreshFunc

	mu  sync.RWMutex
	tok *oauth2.Token
}

// NewRefresher returns a Refresher that loads tokens with fetch.
func NewRefresher(name string, fetch RefreshFunc) *Refresher {
	return &Refresher{name: name, fetch: fetch}
}

// Token returns the cached token, fetching it on first use.
func (r *Refresher) Token() (*oauth2.Token, error) {
	r.mu.RLock()
	tok := r.tok
	r.mu.RUnlock()
	if tok != nil {
		return tok, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := r.Refresh(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tok, nil
}

// Refresh fetches a new token and caches it. The previous token stays in
// place when the fetch fails.
func (r *Refresher) Refresh(ctx context.Context) error {
	tok, err := r.fetch(ctx)
	if err != nil {
		return err
	}
	if tok == nil || tok.AccessToken == "" {
		return ErrEmptyToken
	}
	r.mu.Lock()
	changed := r.tok == nil || r.tok.AccessToken != tok.AccessToken
	r.tok = tok
	r.mu.Unlock()
	if changed {
		slog.Info("token refreshed", slog.String("provider", r.name))
	}
	return nil
}

// Start launches a goroutine that re-fetches the token every interval,
// with jitter, until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		for {
			// Add per-iteration jitter (±20% of interval) for scheduling diversity.
			jitterRange := int64(interval / 5)
			nextSleep := interval
			if jitterRange > 0 {
				nextSleep += time.Duration(rand.Int64N(jitterRange*2) - jitterRange)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
			ctx2, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := r.Refresh(ctx2)
			cancel()
			if err != nil {
				slog.Warn("token refresh failed", slog.String("provider", r.name), slog.Any("err", err))
			}
		}
	}()
}

// NewTokenSource picks the token source for the socket: a re-read file when
// path is set, otherwise the fixed token, otherwise nil (no authentication).
func NewTokenSource(ctx context.Context, token, path string, interval time.Duration) oauth2.TokenSource {
	switch {
	case path != "":
		r := NewRefresher("file", FileToken(path))
		r.Start(ctx, interval)
		return r
	case token != "":
		return oauth2.ReuseTokenSource(nil, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	default:
		return nil
	}
}
