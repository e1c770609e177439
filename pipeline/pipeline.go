package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/shaclpipe/shaclpipe/cosmos"
	"github.com/shaclpipe/shaclpipe/jsonld"
	"github.com/shaclpipe/shaclpipe/mapping"
	"github.com/shaclpipe/shaclpipe/sanitize"
	"github.com/shaclpipe/shaclpipe/shape"
	"github.com/shaclpipe/shaclpipe/transform"
	"github.com/shaclpipe/shaclpipe/validate"
)

// errStopIteration signals that the streaming consumer stopped pulling;
// the run winds down without treating it as a failure.
var errStopIteration = errors.New("pipeline: consumer stopped iteration")

const defaultProgressInterval = 1000

// Pipeline drives one shape definition's records from a source to a sink:
// map, optionally validate, build, serialize, emit. The default execution
// model is single-threaded cooperative streaming; each record is fully
// processed and emitted before the next is pulled, so memory stays constant
// with respect to input size and backpressure is intrinsic.
//
// A Pipeline owns its source, dead-letter writer, and progress reporter for
// the duration of a run and releases them on every exit path. It can run
// again only if its source implements [Resettable].
type Pipeline struct {
	def        *shape.Definition
	src        Source
	transforms *transform.Registry
	mapper     *mapping.Mapper
	builder    *jsonld.Builder

	mode            validate.Mode
	preBuild        *validate.PreBuild
	shaclTier       *validate.SHACL
	sampleRate      float64
	shaclSampleRate float64
	seed            int64

	dlqPath          string
	progress         ProgressFunc
	progressInterval int64
	log              *slog.Logger

	state atomic.Int32
	ran   atomic.Bool
}

// Option configures a [Pipeline].
type Option func(*Pipeline) error

// WithValidation enables the pre-build validation tier under mode. In
// sample mode, rate selects the validated fraction.
func WithValidation(mode validate.Mode, rate float64) Option {
	return func(p *Pipeline) error {
		p.mode = mode
		p.sampleRate = rate
		p.preBuild = validate.NewPreBuild(p.def)

		return nil
	}
}

// WithSHACL enables the full SHACL round-trip tier over built documents,
// validating rate of them (1.0 checks every document).
func WithSHACL(rate float64) Option {
	return func(p *Pipeline) error {
		p.shaclTier = validate.NewSHACL(p.def)
		p.shaclSampleRate = rate

		return nil
	}
}

// WithDeadLetter routes per-record failures to an append-only NDJSON file
// at path instead of aborting the run (report mode only).
func WithDeadLetter(path string) Option {
	return func(p *Pipeline) error {
		p.dlqPath = path

		return nil
	}
}

// WithProgress installs a progress callback invoked every interval records;
// interval <= 0 keeps the default.
func WithProgress(fn ProgressFunc, interval int64) Option {
	return func(p *Pipeline) error {
		p.progress = fn

		if interval > 0 {
			p.progressInterval = interval
		}

		return nil
	}
}

// WithTransforms registers user transforms before the run freezes the
// registry. Redefining a built-in fails construction.
func WithTransforms(fns map[string]transform.Func) Option {
	return func(p *Pipeline) error {
		for name, fn := range fns {
			if err := p.transforms.Register(name, fn); err != nil {
				return err
			}
		}

		return nil
	}
}

// WithTransformRegistry substitutes a caller-owned transform registry.
func WithTransformRegistry(r *transform.Registry) Option {
	return func(p *Pipeline) error {
		p.transforms = r

		return nil
	}
}

// WithSeed fixes the sampling RNG seed, making sample runs reproducible.
func WithSeed(seed int64) Option {
	return func(p *Pipeline) error {
		p.seed = seed

		return nil
	}
}

// WithPipelineLogger sets the logger for record-level warnings and run
// summaries. Raw rows are PII-masked before they reach a log line.
func WithPipelineLogger(l *slog.Logger) Option {
	return func(p *Pipeline) error {
		p.log = l

		return nil
	}
}

// New constructs a Pipeline over def and src.
func New(def *shape.Definition, src Source, opts ...Option) (*Pipeline, error) {
	if def == nil || src == nil {
		return nil, fmt.Errorf("%w: a shape definition and a source are required", ErrConfig)
	}

	p := &Pipeline{
		def:              def,
		src:              src,
		transforms:       transform.New(),
		mode:             validate.ModeReport,
		sampleRate:       1.0,
		shaclSampleRate:  1.0,
		progressInterval: defaultProgressInterval,
		log:              slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	builder, err := jsonld.NewBuilder(def)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	p.builder = builder
	p.mapper = mapping.NewMapper(def.Mapping, p.transforms, mapping.WithLogger(p.log))

	return p, nil
}

// State returns the pipeline's lifecycle state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// rejection is one record's non-fatal failure, bound for the dead-letter
// file in report mode.
type rejection struct {
	reason  string
	kind    string
	message string
	err     error
}

// run is the single streaming loop behind every output method. emit
// receives each surviving document and its serialized bytes; an emit error
// fails the run unless it is [errStopIteration].
func (p *Pipeline) run(ctx context.Context, emit func(*jsonld.Object, []byte) error) (*Result, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}

	p.transforms.Freeze()

	result := &Result{DeadLetterPath: p.dlqPath}
	start := time.Now()

	var dlq *deadLetter

	if p.dlqPath != "" {
		var err error

		dlq, err = openDeadLetter(p.dlqPath)
		if err != nil {
			p.finish(StateFailed)

			return result, err
		}

		defer dlq.Close()
	}

	total := int64(-1)
	if n, ok := p.src.Count(); ok {
		total = int64(n)
	}

	rng := rand.New(rand.NewSource(p.seed))

	final := StateCompleted

	var runErr error

	for raw, err := range p.src.Records(ctx) {
		if err != nil {
			final, runErr = StateFailed, err

			break
		}

		if ctx.Err() != nil {
			final = StateCancelled

			break
		}

		result.RecordsIn++

		if isEmptyRecord(raw) {
			result.RecordsFiltered++

			p.tick(result, total)

			continue
		}

		doc, data, rej := p.processRecord(raw, rng)
		if rej != nil {
			if p.mode == validate.ModeStrict {
				final, runErr = StateFailed, rej.err

				break
			}

			result.RecordsFailed++

			p.log.Warn("record rejected",
				"reason", rej.reason, "kind", rej.kind, "message", rej.message,
				"row", sanitize.MaskForLog(toAny(raw)))

			if dlq != nil {
				if err := dlq.Write(rej.reason, rej.kind, rej.message, raw); err != nil {
					final, runErr = StateFailed, err

					break
				}
			}

			p.tick(result, total)

			continue
		}

		if err := emit(doc, data); err != nil {
			if errors.Is(err, errStopIteration) {
				break
			}

			final, runErr = StateFailed, err

			break
		}

		result.RecordsOut++
		result.BytesWritten += int64(len(data))

		p.tick(result, total)
	}

	if ctx.Err() != nil && final == StateCompleted {
		final = StateCancelled
	}

	result.finalize(start)
	p.finish(final)

	p.log.Info("pipeline run finished",
		"state", final.String(),
		"records_in", result.RecordsIn,
		"records_out", result.RecordsOut,
		"records_failed", result.RecordsFailed,
		"records_filtered", result.RecordsFiltered,
		"elapsed", result.Elapsed)

	if runErr == nil && final == StateCancelled {
		runErr = context.Cause(ctx)
	}

	return result, runErr
}

// processRecord takes one raw record through validate, map, build, and
// serialize. A per-record failure comes back as a rejection.
func (p *Pipeline) processRecord(raw mapping.RawRecord, rng *rand.Rand) (*jsonld.Object, []byte, *rejection) {
	recordID := raw[p.def.Mapping.IDSource]

	if p.preBuild != nil && p.sampled(rng, p.sampleRate) {
		if issues := p.preBuild.ValidateRecord(recordID, raw); len(issues) > 0 {
			first := issues[0]
			res := validate.NewResult()

			for _, issue := range issues {
				res.Add(issue)
			}

			return nil, nil, &rejection{
				reason:  "validation",
				kind:    first.Kind,
				message: first.Message,
				err:     &validate.Error{Result: res},
			}
		}
	}

	md, err := p.mapper.Map(raw)
	if err != nil {
		return nil, nil, reject("mapping", err)
	}

	doc, err := p.builder.Build(md)
	if err != nil {
		return nil, nil, reject("build", err)
	}

	if p.shaclTier != nil && p.sampled(rng, p.shaclSampleRate) {
		issues, err := p.shaclTier.ValidateDocument(doc)
		if err != nil {
			return nil, nil, reject("validation", err)
		}

		if len(issues) > 0 {
			res := validate.NewResult()
			for _, issue := range issues {
				res.Add(issue)
			}

			return nil, nil, &rejection{
				reason:  "validation",
				kind:    issues[0].Kind,
				message: issues[0].Message,
				err:     &validate.Error{Result: res},
			}
		}
	}

	data, err := jsonld.Marshal(doc)
	if err != nil {
		return nil, nil, reject("serialization", err)
	}

	return doc, data, nil
}

func (p *Pipeline) sampled(rng *rand.Rand, rate float64) bool {
	if p.mode != validate.ModeSample || rate >= 1.0 {
		return true
	}

	return rng.Float64() < rate
}

func (p *Pipeline) tick(result *Result, total int64) {
	if p.progress == nil {
		return
	}

	if result.RecordsIn%p.progressInterval == 0 {
		p.progress(result.RecordsIn, total)
	}
}

// reject classifies err into a dead-letter rejection.
func reject(reason string, err error) *rejection {
	return &rejection{reason: reason, kind: kindOf(err), message: err.Error(), err: err}
}

// kindOf extracts the taxonomy kind string from a per-record error.
func kindOf(err error) string {
	var mapErr *mapping.MappingError
	if errors.As(err, &mapErr) {
		return string(mapErr.Kind)
	}

	var buildErr *jsonld.BuildError
	if errors.As(err, &buildErr) {
		return string(buildErr.Kind)
	}

	var valErr *validate.Error
	if errors.As(err, &valErr) {
		if len(valErr.Result.Issues) > 0 {
			return valErr.Result.Issues[0].Kind
		}

		return "ValidationError"
	}

	if errors.Is(err, jsonld.ErrSerialize) {
		return "SerializationError"
	}

	return "Error"
}

func (p *Pipeline) begin() error {
	if State(p.state.Load()) == StateRunning {
		return fmt.Errorf("%w: pipeline is already running", ErrConfig)
	}

	if p.ran.Load() {
		r, ok := p.src.(Resettable)
		if !ok {
			return ErrNotRestartable
		}

		if err := r.Reset(); err != nil {
			return &AdapterError{Kind: AdapterConnect, Source: "reset", Message: err.Error(), Err: err}
		}
	}

	p.ran.Store(true)
	p.state.Store(int32(StateRunning))

	return nil
}

func (p *Pipeline) finish(s State) {
	p.state.Store(int32(s))
}

// Stream lazily yields each built document in input order. The sequence is
// finite and non-restartable; per-record failures follow the configured
// mode (dead-letter in report, terminal error in strict).
func (p *Pipeline) Stream(ctx context.Context) iter.Seq2[*jsonld.Object, error] {
	return func(yield func(*jsonld.Object, error) bool) {
		stopped := false

		_, err := p.run(ctx, func(doc *jsonld.Object, _ []byte) error {
			if !yield(doc, nil) {
				stopped = true

				return errStopIteration
			}

			return nil
		})

		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

// BuildAll materializes every output document.
func (p *Pipeline) BuildAll(ctx context.Context) ([]*jsonld.Object, error) {
	var docs []*jsonld.Object

	_, err := p.run(ctx, func(doc *jsonld.Object, _ []byte) error {
		docs = append(docs, doc)

		return nil
	})

	return docs, err
}

// WriteNDJSON streams one serialized document per line into w.
func (p *Pipeline) WriteNDJSON(ctx context.Context, w io.Writer) (*Result, error) {
	return p.run(ctx, func(_ *jsonld.Object, data []byte) error {
		if _, err := w.Write(data); err != nil {
			return err
		}

		_, err := w.Write([]byte{'\n'})

		return err
	})
}

// ToNDJSON streams the run into a newline-delimited JSON file at path. The
// file is closed on every exit path.
func (p *Pipeline) ToNDJSON(ctx context.Context, path string) (*Result, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrConfig, path, err)
	}
	defer f.Close()

	return p.WriteNDJSON(ctx, f)
}

// WriteJSON streams the run into w as a single JSON array. pretty indents
// each document; compact output has one document per array element with no
// extra whitespace.
func (p *Pipeline) WriteJSON(ctx context.Context, w io.Writer, pretty bool) (*Result, error) {
	open := "["
	if pretty {
		open = "[\n"
	}

	if _, err := io.WriteString(w, open); err != nil {
		return nil, err
	}

	first := true

	result, err := p.run(ctx, func(doc *jsonld.Object, data []byte) error {
		if pretty {
			var perr error

			data, perr = jsonld.MarshalIndent(doc)
			if perr != nil {
				return perr
			}
		}

		sep := ","
		if pretty {
			sep = ",\n"
		}

		if first {
			sep = ""
			first = false
		}

		if _, werr := io.WriteString(w, sep); werr != nil {
			return werr
		}

		_, werr := w.Write(data)

		return werr
	})
	if err != nil {
		return result, err
	}

	closing := "]"
	if pretty {
		closing = "\n]\n"
	}

	if _, werr := io.WriteString(w, closing); werr != nil {
		return result, werr
	}

	return result, nil
}

// ToJSON writes the run into a JSON array file at path.
func (p *Pipeline) ToJSON(ctx context.Context, path string, pretty bool) (*Result, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: creating %s: %w", ErrConfig, path, err)
	}
	defer f.Close()

	return p.WriteJSON(ctx, f, pretty)
}

// Validate runs the validation tiers with no build output and no sink side
// effects. shacl additionally round-trips every surviving document through
// the full SHACL tier at sampleRate.
func (p *Pipeline) Validate(ctx context.Context, mode validate.Mode, shacl bool, sampleRate float64) (*validate.Result, error) {
	if err := p.begin(); err != nil {
		return nil, err
	}

	p.transforms.Freeze()

	pre := p.preBuild
	if pre == nil {
		pre = validate.NewPreBuild(p.def)
	}

	var shaclTier *validate.SHACL

	if shacl {
		shaclTier = p.shaclTier
		if shaclTier == nil {
			shaclTier = validate.NewSHACL(p.def)
		}
	}

	result := validate.NewResult()
	rng := rand.New(rand.NewSource(p.seed))

	final := StateCompleted

	var runErr error

	for raw, err := range p.src.Records(ctx) {
		if err != nil {
			final, runErr = StateFailed, err

			break
		}

		if ctx.Err() != nil {
			final = StateCancelled

			break
		}

		if mode == validate.ModeSample && rng.Float64() >= sampleRate {
			continue
		}

		recordID := raw[p.def.Mapping.IDSource]

		issues := pre.ValidateRecord(recordID, raw)
		for _, issue := range issues {
			result.Add(issue)
		}

		if len(issues) == 0 && shaclTier != nil {
			if md, err := p.mapper.Map(raw); err == nil {
				if doc, err := p.builder.Build(md); err == nil {
					docIssues, err := shaclTier.ValidateDocument(doc)
					if err != nil {
						final, runErr = StateFailed, err

						break
					}

					for _, issue := range docIssues {
						result.Add(issue)
					}
				}
			}
		}

		if mode == validate.ModeStrict && !result.Conforms {
			final, runErr = StateFailed, &validate.Error{Result: result}

			break
		}
	}

	if ctx.Err() != nil && final == StateCompleted {
		final = StateCancelled
	}

	p.finish(final)

	return result, runErr
}

// ToCosmos streams the run into a bounded-concurrency bulk upsert against
// client. The producer feeds a channel sized to twice the worker count, so
// it blocks when workers fall behind; workers observe cancellation between
// upserts while in-flight operations complete. The client is closed when
// the method returns, without exception.
func (p *Pipeline) ToCosmos(ctx context.Context, client cosmos.Client, concurrency int, partitionValue string) (*cosmos.BulkResult, *Result, error) {
	defer client.Close()

	if concurrency <= 0 {
		concurrency = cosmos.DefaultConcurrency
	}

	ch := make(chan *jsonld.Object, 2*concurrency)

	var (
		prodResult *Result
		prodErr    error
	)

	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(ch)

		prodResult, prodErr = p.run(ctx, func(doc *jsonld.Object, _ []byte) error {
			select {
			case ch <- doc:
				return nil
			case <-ctx.Done():
				return context.Cause(ctx)
			}
		})
	}()

	bulk, bulkErr := cosmos.UpsertMany(ctx, client, ch, concurrency, partitionValue)

	<-done

	if prodErr != nil {
		return bulk, prodResult, prodErr
	}

	return bulk, prodResult, bulkErr
}

func isEmptyRecord(raw mapping.RawRecord) bool {
	for _, v := range raw {
		if v != "" {
			return false
		}
	}

	return true
}

func toAny(raw mapping.RawRecord) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	return out
}
