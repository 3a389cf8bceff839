// Package capture owns the ordered multi-shot capture session.
//
// Enhancement of each capture runs in the background, but pages always appear in
// submission order: every unit of work reserves its slot when it is submitted and
// fills that slot when it completes. A Reset bumps the session generation so that
// work still in flight for the abandoned batch is dropped when it lands.
package capture

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lehigh-university-libraries/docscan/internal/preview"
	"github.com/lehigh-university-libraries/docscan/internal/raster"
)

// Enhancer turns a raw capture into an enhanced artifact. Implementations must not
// return errors; a failed enhancement reports Processed=false.
type Enhancer interface {
	Enhance(data []byte, opts raster.Options) raster.Result
}

// Option configures a Controller
type Option func(*Controller)

// WithID sets the session id used as preview owner and in logs
func WithID(id string) Option {
	return func(c *Controller) { c.id = id }
}

// WithConcurrency bounds how many captures are enhanced at once
func WithConcurrency(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.sem = make(chan struct{}, n)
		}
	}
}

// WithOptions sets the initial enhancement options
func WithOptions(opts raster.Options) Option {
	return func(c *Controller) { c.options = opts }
}

// slot reserves a position for one submitted capture
type slot struct {
	index int
	page  *Page
	done  chan struct{}
}

// Controller is the capture session. All mutation goes through AddCapture,
// RemoveCapture, Reset, Finalize and Cancel.
type Controller struct {
	id       string
	enhancer Enhancer
	previews *preview.Registry
	sem      chan struct{}
	created  time.Time

	mu         sync.Mutex
	state      State
	options    raster.Options
	generation uint64
	submitted  int
	slots      []*slot

	// undelivered is the last finalized result until the caller marks it delivered
	undelivered *Result
}

// New creates an empty session
func New(enhancer Enhancer, previews *preview.Registry, opts ...Option) *Controller {
	c := &Controller{
		id:       uuid.NewString(),
		enhancer: enhancer,
		previews: previews,
		sem:      make(chan struct{}, runtime.NumCPU()),
		created:  time.Now(),
		state:    StateEmpty,
		options:  raster.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) CreatedAt() time.Time {
	return c.created
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Options() raster.Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options
}

// SetOptions changes the options used by subsequent captures
func (c *Controller) SetOptions(opts raster.Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = opts
}

// Len is the number of committed pages
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.committed())
}

// Pending is the number of captures still being enhanced
func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.slots {
		if s.page == nil {
			n++
		}
	}
	return n
}

// Pages returns a snapshot of the committed pages in order
func (c *Controller) Pages() []Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// AddCapture submits raw image bytes for enhancement and returns the submission
// index. It does not wait for the enhancement; raw must not be modified afterwards.
func (c *Controller) AddCapture(source string, raw []byte) (int, error) {
	if len(raw) == 0 {
		return 0, ErrEmptyCapture
	}

	c.mu.Lock()
	switch {
	case c.state.Closed():
		c.mu.Unlock()
		return 0, ErrSessionClosed
	case c.state == StateFinalizing:
		c.mu.Unlock()
		return 0, ErrFinalizing
	}

	s := &slot{index: c.submitted, done: make(chan struct{})}
	c.submitted++
	c.slots = append(c.slots, s)
	c.state = StateCapturing
	gen := c.generation
	opts := c.options
	c.mu.Unlock()

	slog.Debug("Capture submitted", "session_id", c.id, "index", s.index, "source", source, "bytes", len(raw))
	go c.process(gen, s, source, raw, opts)

	return s.index, nil
}

func (c *Controller) process(gen uint64, s *slot, source string, raw []byte, opts raster.Options) {
	c.sem <- struct{}{}
	page := c.enhance(source, raw, opts)
	<-c.sem

	c.commit(gen, s, page)
}

// enhance never fails; the raw page is the fallback for any problem
func (c *Controller) enhance(source string, raw []byte, opts raster.Options) (page *Page) {
	page = rawPage(source, raw)

	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Enhancer panicked, keeping raw capture", "session_id", c.id, "source", source, "panic", r)
		}
	}()

	result := c.enhancer.Enhance(raw, opts)
	if !result.Processed {
		return page
	}

	return &Page{
		Source:      source,
		Data:        result.Data,
		ContentType: raster.ContentType,
		Enhanced:    true,
		Width:       result.Width,
		Height:      result.Height,
	}
}

func rawPage(source string, raw []byte) *Page {
	page := &Page{
		Source:      source,
		Data:        raw,
		ContentType: http.DetectContentType(raw),
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil {
		page.Width, page.Height = cfg.Width, cfg.Height
	}
	return page
}

func (c *Controller) commit(gen uint64, s *slot, page *Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(s.done)

	if gen != c.generation {
		slog.Debug("Discarding capture from abandoned batch", "session_id", c.id, "index", s.index, "generation", gen)
		return
	}

	page.Preview = c.previews.Acquire(c.id, gen, page.Data)
	s.page = page
	c.renumber()

	slog.Info("Capture added", "session_id", c.id, "index", s.index, "enhanced", page.Enhanced, "pages", len(c.committed()))
}

// Wait blocks until every capture submitted in the current generation is committed
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pendingDone()
	c.mu.Unlock()

	return waitAll(ctx, pending)
}

// RemoveCapture deletes the committed page at index and releases its preview
func (c *Controller) RemoveCapture(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state.Closed():
		return ErrSessionClosed
	case c.state == StateFinalizing:
		return ErrFinalizing
	}

	pos := -1
	n := 0
	for i, s := range c.slots {
		if s.page == nil {
			continue
		}
		if n == index {
			pos = i
			break
		}
		n++
	}
	if index < 0 || pos < 0 {
		return ErrIndexOutOfRange
	}

	removed := c.slots[pos]
	c.slots = append(c.slots[:pos], c.slots[pos+1:]...)
	c.release(removed.page)
	c.renumber()

	if len(c.slots) == 0 {
		c.state = StateEmpty
	}

	slog.Info("Capture removed", "session_id", c.id, "index", index, "pages", len(c.committed()))
	return nil
}

// Reset discards every page and any capture still in flight
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	released := c.discard()
	c.state = StateEmpty
	slog.Info("Session reset", "session_id", c.id, "released_previews", released, "generation", c.generation)
}

// Cancel discards the session for good. Only Reset reopens it.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	released := c.discard()
	c.state = StateCancelled
	slog.Info("Session cancelled", "session_id", c.id, "released_previews", released)
}

// Finalize waits for in-flight captures and hands the ordered pages to the caller.
// The merge request is only honoured for sessions with more than one page. On
// success every preview is released and the session is completed.
func (c *Controller) Finalize(ctx context.Context, mergeIntoOne bool) (*Result, error) {
	c.mu.Lock()
	switch {
	case c.state.Closed():
		c.mu.Unlock()
		return nil, ErrSessionClosed
	case c.state == StateFinalizing:
		c.mu.Unlock()
		return nil, ErrFinalizing
	}
	c.state = StateFinalizing
	gen := c.generation
	pending := c.pendingDone()
	c.mu.Unlock()

	waitErr := waitAll(ctx, pending)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		if c.state == StateCancelled {
			return nil, ErrSessionClosed
		}
		return nil, ErrSessionReset
	}
	if waitErr != nil {
		c.state = c.openState()
		return nil, waitErr
	}

	pages := c.snapshot()
	if len(pages) == 0 {
		c.state = StateEmpty
		return nil, ErrEmptySession
	}

	for i := range pages {
		pages[i].Preview = ""
	}
	result := &Result{
		Pages:        pages,
		MergeIntoOne: mergeIntoOne && len(pages) > 1,
	}

	released := c.discard()
	c.state = StateCompleted
	c.undelivered = result

	slog.Info("Session finalized", "session_id", c.id, "pages", len(pages), "merge_into_one", result.MergeIntoOne, "released_previews", released)
	return result, nil
}

// Undelivered returns the finalized result that has not been handed off yet.
// It survives until MarkDelivered, Reset or Cancel.
func (c *Controller) Undelivered() (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.undelivered, c.undelivered != nil
}

// MarkDelivered drops the retained result once the handoff has succeeded
func (c *Controller) MarkDelivered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.undelivered = nil
}

// discard releases the previews of the current generation, forgets all slots and
// starts a new generation
func (c *Controller) discard() int {
	released := c.previews.ReleaseGeneration(c.id, c.generation)
	for _, s := range c.slots {
		if s.page != nil {
			s.page.Preview = ""
		}
	}
	c.slots = nil
	c.undelivered = nil
	c.submitted = 0
	c.generation++
	return released
}

func (c *Controller) release(page *Page) bool {
	if page.Preview == "" {
		return false
	}
	if err := c.previews.Release(page.Preview); err != nil {
		slog.Error("Unable to release preview", "session_id", c.id, "preview", page.Preview, "err", err)
		return false
	}
	page.Preview = ""
	return true
}

func (c *Controller) openState() State {
	if len(c.slots) == 0 {
		return StateEmpty
	}
	return StateCapturing
}

func (c *Controller) committed() []*Page {
	pages := make([]*Page, 0, len(c.slots))
	for _, s := range c.slots {
		if s.page != nil {
			pages = append(pages, s.page)
		}
	}
	return pages
}

func (c *Controller) renumber() {
	for i, p := range c.committed() {
		p.Ordinal = i + 1
	}
}

func (c *Controller) snapshot() []Page {
	committed := c.committed()
	pages := make([]Page, len(committed))
	for i, p := range committed {
		pages[i] = *p
	}
	return pages
}

func (c *Controller) pendingDone() []chan struct{} {
	var pending []chan struct{}
	for _, s := range c.slots {
		if s.page == nil {
			pending = append(pending, s.done)
		}
	}
	return pending
}

func waitAll(ctx context.Context, pending []chan struct{}) error {
	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
