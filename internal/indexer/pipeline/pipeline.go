package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/keinsell/zkk/internal/concepts"
	"github.com/keinsell/zkk/internal/fingerprint"
	"github.com/keinsell/zkk/internal/indexer"
	"github.com/keinsell/zkk/internal/indexer/scancache"
	"github.com/keinsell/zkk/internal/models"
	"github.com/keinsell/zkk/internal/parser"
	"github.com/keinsell/zkk/internal/parser/markdown"
	"github.com/keinsell/zkk/internal/progress"
	"github.com/keinsell/zkk/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Workers int
	// LockPath is the cross-process lock file; empty disables it.
	LockPath string
	// CacheDir holds scan caches; empty disables the scan cache.
	CacheDir string
}

type Indexer struct {
	docs      storage.DocumentStore
	concepts  storage.ConceptStore
	vec       storage.VectorStore
	parser    parser.DocumentParser
	extractor *concepts.Extractor
	logger    *zap.Logger
	opt       Options
	locks     *keyedMutex
}

func New(
	docs storage.DocumentStore,
	conc storage.ConceptStore,
	vec storage.VectorStore,
	p parser.DocumentParser,
	extractor *concepts.Extractor,
	logger *zap.Logger,
	opt Options,
) *Indexer {
	if opt.Workers <= 0 {
		opt.Workers = runtime.NumCPU()
	}
	if p == nil {
		p = markdown.New()
	}
	if extractor == nil {
		extractor = concepts.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		docs:      docs,
		concepts:  conc,
		vec:       vec,
		parser:    p,
		extractor: extractor,
		logger:    logger,
		opt:       opt,
		locks:     newKeyedMutex(),
	}
}

func (i *Indexer) IndexProject(ctx context.Context, root string) (indexer.Result, error) {
	return i.index(ctx, root, nil, false)
}

// Reindex re-embeds and re-extracts every document under root regardless of
// its fingerprint.
func (i *Indexer) Reindex(ctx context.Context, root string) (indexer.Result, error) {
	return i.index(ctx, root, nil, true)
}

// IndexSource indexes the documents offered by src. Stored documents under
// root that src no longer lists are purged.
func (i *Indexer) IndexSource(ctx context.Context, src Source, root string, force bool) (indexer.Result, error) {
	return i.index(ctx, root, src, force)
}

// IndexProjectProgress runs IndexProject (or Reindex when force is set) in the
// background and streams its progress events. Both channels are closed when
// the run ends; the error channel carries at most one value.
func (i *Indexer) IndexProjectProgress(
	ctx context.Context,
	root string,
	force bool,
) (<-chan models.ProgressEvent, <-chan error) {
	events := make(chan models.ProgressEvent, 64)
	errs := make(chan error, 1)
	sink := func(ev models.ProgressEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	go func() {
		defer close(errs)
		defer close(events)
		if _, err := i.index(progress.WithSink(ctx, sink), root, nil, force); err != nil {
			errs <- err
		}
	}()
	return events, errs
}

type outcome struct {
	kind       indexer.Outcome
	embeddings int
	concepts   int
	warnings   []indexer.DocumentError
}

func (i *Indexer) index(ctx context.Context, root string, src Source, force bool) (indexer.Result, error) {
	var res indexer.Result
	root, err := resolveRoot(root)
	if err != nil {
		return res, err
	}
	if src == nil {
		src = DirSource{Root: root}
	}
	unlock, err := acquireIndexLock(i.opt.LockPath)
	if err != nil {
		return res, err
	}
	defer unlock()

	entries, err := src.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list %s: %w", root, err)
	}
	res.Total = len(entries)
	i.logger.Info("index started", zap.String("root", root), zap.Int("documents", len(entries)), zap.Bool("force", force))
	progress.Emit(ctx, models.PhaseIndexStart, root, fmt.Sprintf("indexing %d documents", len(entries)))

	var cache *scancache.Cache
	if i.opt.CacheDir != "" {
		cache = scancache.Load(i.opt.CacheDir, root)
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.opt.Workers)
	for _, e := range entries {
		g.Go(func() error {
			out, err := i.processDocument(gctx, src, e, cache, force)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			done++
			switch out.kind {
			case indexer.OutcomeNew:
				res.New++
			case indexer.OutcomeUpdated:
				res.Updated++
			case indexer.OutcomeSkipped:
				res.Skipped++
			case indexer.OutcomeFailed:
				res.Failed++
			}
			res.Embeddings += out.embeddings
			res.Concepts += out.concepts
			res.Warnings = append(res.Warnings, out.warnings...)
			progress.EmitPercent(gctx, phaseFor(out.kind), e.Path,
				fmt.Sprintf("%s %s", out.kind, e.Path),
				float64(done)/float64(len(entries))*100)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	purged, err := i.purge(ctx, root, entries, cache)
	res.Purged = purged
	if err != nil {
		return res, err
	}
	if err := cache.Save(); err != nil {
		i.logger.Warn("scan cache not saved", zap.Error(err))
	}

	i.logger.Info("index completed",
		zap.String("root", root),
		zap.Int("new", res.New),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("purged", res.Purged),
		zap.Int("failed", res.Failed),
		zap.Int("warnings", len(res.Warnings)),
	)
	progress.Emit(ctx, models.PhaseIndexComplete, root, summary(res))
	return res, nil
}

func phaseFor(o indexer.Outcome) models.ProgressPhase {
	switch o {
	case indexer.OutcomeNew:
		return models.PhaseDocumentNew
	case indexer.OutcomeUpdated:
		return models.PhaseDocumentUpdate
	case indexer.OutcomeFailed:
		return models.PhaseDocumentError
	}
	return models.PhaseDocumentSkip
}

func summary(r indexer.Result) string {
	return fmt.Sprintf("%d documents: %d new, %d updated, %d skipped, %d purged, %d failed; %d embeddings, %d concepts",
		r.Total, r.New, r.Updated, r.Skipped, r.Purged, r.Failed, r.Embeddings, r.Concepts)
}

// processDocument runs the per-document state machine. Only cancellation is
// returned as an error; everything else becomes part of the outcome.
func (i *Indexer) processDocument(
	ctx context.Context,
	src Source,
	e Entry,
	cache *scancache.Cache,
	force bool,
) (outcome, error) {
	unlock := i.locks.Lock(e.Path)
	defer unlock()
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}

	fail := func(stage string, err error) (outcome, error) {
		if ctx.Err() != nil {
			return outcome{}, ctx.Err()
		}
		i.logger.Warn("document failed", zap.String("path", e.Path), zap.String("stage", stage), zap.Error(err))
		return outcome{
			kind:     indexer.OutcomeFailed,
			warnings: []indexer.DocumentError{{Path: e.Path, Stage: stage, Err: err}},
		}, nil
	}

	stored, err := i.docs.StoredFingerprint(ctx, e.Path)
	if err != nil {
		return fail("fingerprint", err)
	}
	mtime := e.ModTime.UnixNano()
	if !force && stored != nil {
		if hit, ok := cache.Lookup(e.Path, mtime, e.Size); ok &&
			fingerprint.Classify(stored, hit) == fingerprint.Unchanged {
			return outcome{kind: indexer.OutcomeSkipped}, nil
		}
	}

	content, err := src.Read(ctx, e.Path)
	if err != nil {
		return fail("read", err)
	}
	fp := fingerprint.Compute(content, e.ModTime)
	state := fingerprint.Classify(stored, fp)
	if state == fingerprint.Unchanged && !force {
		cache.Put(e.Path, fp, e.Size)
		return outcome{kind: indexer.OutcomeSkipped}, nil
	}

	parsed, err := i.parser.ParseDocument(e.Path, content)
	if err != nil {
		return fail("parse", err)
	}
	doc := &models.Document{
		Path:     e.Path,
		Name:     markdown.Stem(e.Path),
		Title:    parsed.Title,
		Content:  string(content),
		AST:      parsed.AST,
		ModTime:  fp.ModTime,
	}
	// The checksum stays empty until embeddings and concepts are written, so
	// an interrupted document is classified as changed by the next run.
	docID, err := i.docs.UpsertDocument(ctx, doc, parsed.Links)
	if err != nil {
		return fail("store", err)
	}

	out := outcome{kind: indexer.OutcomeUpdated}
	if state == fingerprint.New {
		out.kind = indexer.OutcomeNew
	}
	warn := func(stage string, err error) {
		i.logger.Warn("document step failed", zap.String("path", e.Path), zap.String("stage", stage), zap.Error(err))
		out.warnings = append(out.warnings, indexer.DocumentError{Path: e.Path, Stage: stage, Err: err})
	}

	if i.vec != nil {
		n, err := i.vec.StoreEmbeddings(ctx, docID, e.Path, doc.Content, force)
		out.embeddings = n
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return outcome{}, err
			}
			warn("embeddings", err)
		}
	}

	if i.concepts != nil {
		progress.Emit(ctx, models.PhaseConceptExtractionStart, e.Path, "extracting concepts")
		extracted := i.extractor.Extract(doc.Content)
		progress.EmitPercent(ctx, models.PhaseConceptExtractionProgress, e.Path,
			fmt.Sprintf("%d concepts, %d relations", len(extracted.Concepts), len(extracted.Relations)), 50)
		n, err := i.concepts.StoreConcepts(ctx, docID, extracted.Concepts, extracted.Relations)
		if err != nil {
			progress.Emit(ctx, models.PhaseConceptExtractionError, e.Path, err.Error())
			warn("concepts", err)
		} else {
			out.concepts = n
			progress.Emit(ctx, models.PhaseConceptExtractionComplete, e.Path,
				fmt.Sprintf("stored %d concepts", n))
		}
	}

	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}
	if err := i.docs.CommitFingerprint(ctx, docID, fp); err != nil {
		return fail("store", err)
	}
	cache.Put(e.Path, fp, e.Size)
	return out, nil
}

// purge removes stored documents under root that the source no longer lists.
func (i *Indexer) purge(ctx context.Context, root string, entries []Entry, cache *scancache.Cache) (int, error) {
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	stored, err := i.docs.ListPaths(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("list stored documents: %w", err)
	}
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Path] = struct{}{}
	}
	purged := 0
	for _, path := range stored {
		if _, ok := seen[path]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		unlock := i.locks.Lock(path)
		id, err := i.docs.DocumentID(ctx, path)
		if err == nil && i.vec != nil {
			err = i.vec.DeleteByDocument(ctx, id)
		}
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			_, err = i.docs.DeleteDocument(ctx, path)
		}
		unlock()
		if err != nil {
			return purged, fmt.Errorf("purge %s: %w", path, err)
		}
		cache.Remove(path)
		purged++
		i.logger.Info("document purged", zap.String("path", path))
		progress.Emit(ctx, models.PhaseDocumentPurge, path, "removed from index")
	}
	return purged, nil
}

var _ indexer.Indexer = (*Indexer)(nil)
