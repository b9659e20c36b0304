/*
Copyright Gen Digital Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package importer scrapes the upstream directory's export stream and
// appends it to the local store. It is the only writer of the mirror.
package importer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/trustbloc/plc-go/mirror/store"
	"github.com/trustbloc/plc-go/operation"
)

const (
	defaultTimeout  = time.Minute
	defaultPageSize = 1000
	defaultInterval = 30 * time.Second

	// Export lines are small JSON objects, but leave generous headroom.
	maxLineSize = 1 << 20
)

// httpClient represents an HTTP client.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Importer polls the upstream export endpoint and persists new entries.
type Importer struct {
	httpClient httpClient
	upstream   string
	store      *store.Store
	pageSize   int
	interval   time.Duration
	logger     *slog.Logger
}

// Option configures the importer.
type Option func(*Importer)

// WithHTTPClient option is for a custom http client.
func WithHTTPClient(client httpClient) Option {
	return func(im *Importer) {
		im.httpClient = client
	}
}

// WithPageSize sets how many entries are requested per export page.
func WithPageSize(n int) Option {
	return func(im *Importer) {
		im.pageSize = n
	}
}

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(im *Importer) {
		im.interval = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(im *Importer) {
		im.logger = logger
	}
}

// New creates an importer reading from the given upstream base URL.
func New(upstream string, s *store.Store, opts ...Option) *Importer {
	im := &Importer{
		httpClient: &http.Client{Timeout: defaultTimeout},
		upstream:   upstream,
		store:      s,
		pageSize:   defaultPageSize,
		interval:   defaultInterval,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(im)
	}

	return im
}

// Run polls until the context is canceled. Poll failures are logged and
// retried at the next tick; the mirror catches up from its cursor.
func (im *Importer) Run(ctx context.Context) {
	ticker := time.NewTicker(im.interval)
	defer ticker.Stop()

	for {
		if n, err := im.RunOnce(ctx); err != nil {
			im.logger.Error("export poll failed", "err", err)
		} else if n > 0 {
			im.logger.Info("imported export entries", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce fetches export pages from the stored cursor until upstream has
// nothing newer, returning how many entries were appended.
func (im *Importer) RunOnce(ctx context.Context) (int, error) {
	after, err := im.store.LastCreatedAt(ctx)
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}

	total := 0

	for {
		entries, err := im.fetchPage(ctx, after)
		if err != nil {
			return total, err
		}

		if len(entries) == 0 {
			return total, nil
		}

		inserted, err := im.store.AppendEntries(ctx, entries)
		if err != nil {
			return total, fmt.Errorf("append entries: %w", err)
		}

		total += inserted
		after = entries[len(entries)-1].CreatedAt

		if len(entries) < im.pageSize {
			return total, nil
		}
	}
}

func (im *Importer) fetchPage(ctx context.Context, after string) ([]*operation.LogEntry, error) {
	endpoint := fmt.Sprintf("%s/export?count=%d", im.upstream, im.pageSize)
	if after != "" {
		endpoint += "&after=" + url.QueryEscape(after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new HTTP request: %w", err)
	}

	resp, err := im.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpClient.Do: %w", err)
	}

	defer closeResponseBody(resp.Body, im.logger)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("export returned %s", strconv.Itoa(resp.StatusCode))
	}

	return ParseExport(resp.Body)
}

// ParseExport decodes a JSON-lines export stream.
func ParseExport(r io.Reader) ([]*operation.LogEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var entries []*operation.LogEntry

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		entry := &operation.LogEntry{}
		if err := json.Unmarshal(line, entry); err != nil {
			return nil, fmt.Errorf("decode export line: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read export stream: %w", err)
	}

	return entries, nil
}

func closeResponseBody(body io.Closer, logger *slog.Logger) {
	if err := body.Close(); err != nil {
		logger.Warn("failed to close response body", "err", err)
	}
}
