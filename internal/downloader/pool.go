// Package downloader runs the download phase of a run: a bounded pool of
// workers fetching each queued post's file and handing it to the configured
// destination.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
)

// Fetcher retrieves one media file. The caller owns the response body and
// must inspect the status code.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*http.Response, error)
}

// LooseStore is the loose-file destination.
type LooseStore interface {
	HasFile(p *post.Post) (bool, error)
	Save(p *post.Post, body io.Reader) error
}

// ArchiveStore is the single-archive destination.
type ArchiveStore interface {
	Add(p *post.Post, saveID bool, data []byte)
}

// Result is the outcome of one post.
type Result struct {
	Post       post.Post
	Downloaded bool
	Skipped    bool
	Error      error
	Duration   time.Duration
	Size       int
}

// Counters tallies a whole run. Safe for concurrent workers.
type Counters struct {
	downloaded atomic.Uint64
	skipped    atomic.Uint64
	processed  atomic.Uint64
}

// Downloaded is the number of files actually fetched and stored.
func (c *Counters) Downloaded() uint64 { return c.downloaded.Load() }

// Skipped is the number of posts already present on disk.
func (c *Counters) Skipped() uint64 { return c.skipped.Load() }

// Processed is the number of posts the pool finished handling, successfully
// or not.
func (c *Counters) Processed() uint64 { return c.processed.Load() }

// Pool manages the concurrent download workers of one run. Exactly one of
// the two destinations is set.
type Pool struct {
	numWorkers int
	jobQueue   chan post.Post
	results    chan Result
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	fetcher Fetcher
	loose   LooseStore
	archive ArchiveStore
	saveID  bool
	source  string

	counters Counters
	logger   logger.Logger
}

// Options configure a pool.
type Options struct {
	Workers int
	Fetcher Fetcher

	// Loose or Archive receives the files; set exactly one.
	Loose   LooseStore
	Archive ArchiveStore

	// SaveID names files by post number instead of digest.
	SaveID bool

	// Source names the imageboard for log records.
	Source string
}

// NewPool creates a download worker pool.
func NewPool(ctx context.Context, opts Options, log logger.Logger) *Pool {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Pool{
		numWorkers: opts.Workers,
		jobQueue:   make(chan post.Post, opts.Workers*2),
		results:    make(chan Result, opts.Workers),
		ctx:        ctx,
		cancel:     cancel,
		fetcher:    opts.Fetcher,
		loose:      opts.Loose,
		archive:    opts.Archive,
		saveID:     opts.SaveID,
		source:     opts.Source,
		logger:     log,
	}
}

// Counters exposes the run counters.
func (p *Pool) Counters() *Counters {
	return &p.counters
}

// Start launches the workers.
func (p *Pool) Start() {
	p.logger.InfoWithFields("starting download workers", map[string]interface{}{
		"workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop signals that no more jobs are coming, waits for the workers to drain
// the queue, and closes the result channel.
func (p *Pool) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.results)
	p.cancel()
}

// Submit queues one post for download. Fails only when the pool is shutting
// down.
func (p *Pool) Submit(job post.Post) error {
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Results returns the channel run outcomes arrive on.
func (p *Pool) Results() <-chan Result {
	return p.results
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		result := p.processJob(&job)
		p.counters.processed.Add(1)
		if result.Downloaded {
			p.counters.downloaded.Add(1)
		}
		if result.Skipped {
			p.counters.skipped.Add(1)
		}

		select {
		case p.results <- result:
		case <-p.ctx.Done():
			return
		}
	}
}

// processJob downloads one post into the configured destination.
func (p *Pool) processJob(job *post.Post) (result Result) {
	start := time.Now()
	result = Result{Post: *job}
	defer func() {
		result.Duration = time.Since(start)
		logger.LogDownload(p.source, job.ID, result.Downloaded, result.Error)
	}()

	if p.loose != nil {
		exists, err := p.loose.HasFile(job)
		if err != nil {
			result.Error = err
			return result
		}
		if exists {
			result.Skipped = true
			return result
		}
	}

	resp, err := p.fetcher.Fetch(p.ctx, job.URL)
	if err != nil {
		result.Error = err
		return result
	}
	defer resp.Body.Close()

	// A missing or blocked file affects this post only; the rest of the
	// run continues.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		p.logger.WarnWithFields("file unavailable, skipping post", map[string]interface{}{
			"post_id": job.ID,
			"status":  resp.StatusCode,
		})
		return result
	}
	if resp.StatusCode != http.StatusOK {
		result.Error = errs.Connection(fmt.Errorf("server returned status %d", resp.StatusCode))
		return result
	}

	switch {
	case p.loose != nil:
		if err := p.loose.Save(job, resp.Body); err != nil {
			result.Error = err
			return result
		}
	case p.archive != nil:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			result.Error = errs.Connection(err)
			return result
		}
		result.Size = len(data)
		p.archive.Add(job, p.saveID, data)
	}

	result.Downloaded = true
	return result
}
