package golift

import "sync"

// NewCatalogContext returns an empty CatalogContext.
func NewCatalogContext() CatalogContext {
	return &catalogContext{
		open: make(map[Catalog]struct{}),
		done: make(chan struct{}),
	}
}

type catalogContext struct {
	mu       sync.Mutex
	open     map[Catalog]struct{}
	closing  bool
	done     chan struct{}
	doneOnce sync.Once
}

func (ctx *catalogContext) AttachCatalog(cat Catalog) {
	ctx.mu.Lock()
	ctx.open[cat] = struct{}{}
	ctx.mu.Unlock()
}

func (ctx *catalogContext) DetachCatalog(cat Catalog) {
	ctx.mu.Lock()
	delete(ctx.open, cat)
	finished := ctx.closing && len(ctx.open) == 0
	ctx.mu.Unlock()

	if finished {
		ctx.signalDone()
	}
}

func (ctx *catalogContext) Done() <-chan struct{} {
	return ctx.done
}

func (ctx *catalogContext) Close() {
	ctx.mu.Lock()
	if ctx.closing {
		ctx.mu.Unlock()
		return
	}
	ctx.closing = true
	cats := make([]Catalog, 0, len(ctx.open))
	for cat := range ctx.open {
		cats = append(cats, cat)
	}
	ctx.mu.Unlock()

	if len(cats) == 0 {
		ctx.signalDone()
		return
	}

	// Each Close() detaches its catalog, and the last one signals Done()
	for _, cat := range cats {
		go cat.Close()
	}
}

func (ctx *catalogContext) signalDone() {
	ctx.doneOnce.Do(func() {
		close(ctx.done)
	})
}
