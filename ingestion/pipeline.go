package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/machinerag/ai"
	"github.com/poiesic/machinerag/chunker"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/normalize"
	"github.com/poiesic/machinerag/storage"
)

const (
	defaultParentChars = 4000
	defaultBatchSize   = 64
)

// Result summarizes one ingestion run.
type Result struct {
	// Uploaded counts records written to the store.
	Uploaded int
	// Skipped counts duplicate chunks, duplicate PDFs and records dropped
	// before upload.
	Skipped int
	// Failed counts sources that could not be fetched, parsed, embedded or stored.
	Failed int
	// Errors joins the per-source errors behind Failed.
	Errors error
}

// Pipeline ingests property graphs and PDFs into a vector store collection.
type Pipeline struct {
	store      storage.VectorStore
	collection string
	metric     storage.Metric
	dimension  int

	pool       *ants.Pool
	chunker    *chunker.Chunker
	normalizer *normalize.Normalizer
	fetcher    *Fetcher
	embeddings *embeddingProcessor

	parentChars int
	batchSize   int
	progress    Progress
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for PDF fetching and parsing.
// Default is 1, which processes PDFs one at a time.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithChunker replaces the default 100/400/50 word chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return errors.New("chunker is required")
		}
		p.chunker = c
		return nil
	}
}

// WithParentChars sets how many characters of a source feed its parent
// embedding. Default is 4000.
func WithParentChars(n int) Option {
	return func(p *Pipeline) error {
		if n <= 0 {
			return fmt.Errorf("parent chars must be positive, got %d", n)
		}
		p.parentChars = n
		return nil
	}
}

// WithBatchSize sets the number of records per embedding call and per
// upsert. Default is 64.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", n)
		}
		p.batchSize = n
		return nil
	}
}

// WithReferenceExtensions sets the file extensions recognized as embedded
// document references. Default is ".pdf".
func WithReferenceExtensions(exts ...string) Option {
	return func(p *Pipeline) error {
		p.normalizer = normalize.NewNormalizer(exts...)
		return nil
	}
}

// WithDimension overrides the collection dimension. Default is the
// embedder's dimension.
func WithDimension(dim int) Option {
	return func(p *Pipeline) error {
		if dim <= 0 {
			return fmt.Errorf("dimension must be positive, got %d", dim)
		}
		p.dimension = dim
		return nil
	}
}

// WithMetric sets the collection metric. Default is cosine.
func WithMetric(metric storage.Metric) Option {
	return func(p *Pipeline) error {
		if _, err := storage.ParseMetric(string(metric)); err != nil {
			return err
		}
		p.metric = metric
		return nil
	}
}

// WithFetchTimeout sets the timeout for remote documents. Default is 30s.
func WithFetchTimeout(timeout time.Duration) Option {
	return func(p *Pipeline) error {
		p.fetcher = NewFetcher(timeout)
		return nil
	}
}

// WithProgress reports source level progress of every run.
func WithProgress(progress Progress) Option {
	return func(p *Pipeline) error {
		if progress == nil {
			progress = noopProgress{}
		}
		p.progress = progress
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline writing to collection.
func NewPipeline(embedder ai.Embedder, store storage.VectorStore, collection string, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if collection == "" {
		return nil, ErrCollectionRequired
	}

	pool, err := ants.NewPool(1)
	if err != nil {
		return nil, err
	}
	defaultChunker, err := chunker.New()
	if err != nil {
		pool.Release()
		return nil, err
	}

	p := &Pipeline{
		store:       store,
		collection:  collection,
		metric:      storage.MetricCosine,
		dimension:   embedder.Dimension(),
		pool:        pool,
		chunker:     defaultChunker,
		normalizer:  normalize.NewNormalizer(),
		fetcher:     NewFetcher(0),
		parentChars: defaultParentChars,
		batchSize:   defaultBatchSize,
		progress:    noopProgress{},
		logger:      slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	// built after options so it sees the final settings
	p.embeddings, err = newEmbeddingProcessor(embedder, p.dimension, p.batchSize, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// Release releases the worker pool. The pipeline should not be used after
// calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// run is the mutable state of one Ingest call.
type run struct {
	*RunContext
	result Result
	errs   []error
}

func (r *run) fail(logger *slog.Logger, origin string, err error) {
	logger.Warn("skipping source", "source", origin, "err", err)
	r.result.Failed++
	r.errs = append(r.errs, err)
}

// Ingest loads every source, which may be a folder, a file or an http(s)
// URL, and uploads the resulting records. Per-source failures are counted
// in the Result and never abort the run; the returned error reports
// failures that stop the whole run.
func (p *Pipeline) Ingest(ctx context.Context, sources ...string) (Result, error) {
	if len(sources) == 0 {
		return Result{}, ErrNoSources
	}
	if err := p.store.EnsureCollection(ctx, p.collection, p.dimension, p.metric); err != nil {
		return Result{}, fmt.Errorf("ensure collection %q: %w", p.collection, err)
	}

	r := &run{RunContext: NewRunContext()}
	expanded, errs := expandSources(sources)
	for _, err := range errs {
		r.fail(p.logger, "", err)
	}
	p.progress.AddTotal(len(expanded))

	var refs, standalone []source
	for _, src := range expanded {
		if err := ctx.Err(); err != nil {
			return p.finish(r), err
		}
		switch src.kind {
		case core.SourceKindJSON:
			found := p.ingestGraphs(ctx, r, src)
			p.progress.AddTotal(len(found))
			p.progress.Increment(1)
			refs = append(refs, found...)
		case core.SourceKindPDF:
			standalone = append(standalone, src)
		}
	}

	// referenced copies go first so a PDF seen both ways keeps its machine metadata
	p.ingestPDFs(ctx, r, append(refs, standalone...))
	return p.finish(r), ctx.Err()
}

func (p *Pipeline) finish(r *run) Result {
	r.result.Errors = errors.Join(r.errs...)
	p.logger.Info("ingestion finished",
		"uploaded", r.result.Uploaded, "skipped", r.result.Skipped, "failed", r.result.Failed)
	return r.result
}

// ingestGraphs uploads every graph node of a JSON source and returns the
// PDF references found in them.
func (p *Pipeline) ingestGraphs(ctx context.Context, r *run, src source) []source {
	data, err := p.fetcher.Fetch(ctx, src.origin)
	if err != nil {
		r.fail(p.logger, src.origin, err)
		return nil
	}
	value, err := normalize.Parse(data)
	if err != nil {
		r.fail(p.logger, src.origin, fmt.Errorf("%s: %w", src.origin, err))
		return nil
	}
	fingerprint := core.Fingerprint(data)
	builder := recordBuilder{chunker: p.chunker, parentChars: p.parentChars}

	nodes := normalize.Documents(value)
	var refs []source
	for i, node := range nodes {
		doc, found := p.normalizer.Normalize(node)
		if len(doc.Facts) == 0 {
			continue
		}
		origin := src.origin
		if len(nodes) > 1 {
			origin = graphOrigin(src.origin, doc.ID, i)
		}
		meta := ExtractMachineMeta(doc.Facts)

		p.upload(ctx, r, builder.graphDrafts(r.RunContext, origin, fingerprint, doc, meta))

		for _, ref := range found {
			resolved, err := resolveRef(src.origin, ref)
			if err != nil {
				r.fail(p.logger, ref, err)
				continue
			}
			refs = append(refs, source{origin: resolved, kind: core.SourceKindPDF, meta: meta})
		}
	}
	return refs
}

func graphOrigin(origin, id string, index int) string {
	if id == "" {
		id = strconv.Itoa(index)
	}
	return origin + "#" + id
}

// loadedPDF is the outcome of fetching and parsing one PDF on the pool.
type loadedPDF struct {
	src         source
	fingerprint string
	text        string
	err         error
}

// ingestPDFs fetches and parses PDFs on the worker pool, then deduplicates,
// embeds and uploads them in input order, so the first of several
// byte-identical PDFs is the one kept.
func (p *Pipeline) ingestPDFs(ctx context.Context, r *run, pdfs []source) {
	loaded := make([]loadedPDF, len(pdfs))
	var wg sync.WaitGroup
	for i, src := range pdfs {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			loaded[i] = p.loadPDF(ctx, src)
		})
		if err != nil {
			wg.Done()
			loaded[i] = loadedPDF{src: src, err: err}
		}
	}
	wg.Wait()

	builder := recordBuilder{chunker: p.chunker, parentChars: p.parentChars}
	for _, l := range loaded {
		switch {
		case l.fingerprint != "" && !r.MarkPDF(l.fingerprint):
			p.logger.Info("skipping duplicate pdf", "source", l.src.origin)
			r.result.Skipped++
		case l.err != nil:
			r.fail(p.logger, l.src.origin, l.err)
		default:
			if !p.upload(ctx, r, builder.pdfDrafts(r.RunContext, l.src.origin, l.fingerprint, l.text, l.src.meta)) {
				r.ForgetPDF(l.fingerprint)
			}
		}
		p.progress.Increment(1)
	}
}

func (p *Pipeline) loadPDF(ctx context.Context, src source) loadedPDF {
	out := loadedPDF{src: src}
	if out.err = ctx.Err(); out.err != nil {
		return out
	}
	data, err := p.fetcher.Fetch(ctx, src.origin)
	if err != nil {
		out.err = err
		return out
	}
	out.fingerprint = core.Fingerprint(data)
	text, err := chunker.ExtractBytes(data)
	if err != nil {
		out.err = fmt.Errorf("%s: %w", src.origin, err)
		return out
	}
	if strings.TrimSpace(text) == "" {
		out.err = fmt.Errorf("%w: %s has no extractable text", core.ErrSourceParse, src.origin)
		return out
	}
	out.text = text
	return out
}

// upload embeds and stores the drafts of one source. It reports whether
// every record was stored; on failure the chunk hashes of unstored records
// are released from the run.
func (p *Pipeline) upload(ctx context.Context, r *run, sd sourceDrafts) bool {
	r.result.Skipped += sd.skipped

	records, dropped, err := p.embeddings.process(ctx, sd)
	if err != nil {
		r.fail(p.logger, sd.origin, err)
		for _, d := range sd.drafts {
			forgetChunk(r.RunContext, d.labels)
		}
		return false
	}
	r.result.Skipped += dropped

	for start := 0; start < len(records); start += p.batchSize {
		batch := records[start:min(start+p.batchSize, len(records))]
		if err := p.store.Upsert(ctx, p.collection, batch); err != nil {
			r.fail(p.logger, sd.origin, fmt.Errorf("upsert %s: %w", sd.origin, err))
			for _, rec := range records[start:] {
				forgetChunk(r.RunContext, rec.Labels)
			}
			return false
		}
		r.result.Uploaded += len(batch)
	}
	p.logger.Debug("uploaded source", "source", sd.origin, "parent", sd.parent.ParentID, "records", len(records))
	return true
}

func forgetChunk(rc *RunContext, labels map[string]string) {
	if labels[core.LabelKind] == core.RecordKindChunk {
		rc.ForgetChunk(labels[core.LabelSHA256])
	}
}
