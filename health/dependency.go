package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/healthprobe/observe"
	"github.com/jonwraymond/healthprobe/resilience"
)

// Marker document fields.
const (
	// MarkerIDField holds the synthetic identifier of a marker document.
	MarkerIDField = "_id"
	// MarkerField holds MarkerValue.
	MarkerField = "marker"
	// CreatedAtField holds the marker creation time.
	CreatedAtField = "created_at"
	// MarkerValue identifies documents written by the verifier.
	MarkerValue = "healthprobe.marker"
)

// DefaultStageTimeout bounds each store call of a verification cycle.
const DefaultStageTimeout = 5 * time.Second

// Document is a store record.
type Document map[string]any

// Filter selects documents by field equality.
type Filter map[string]any

// MarkerDocument is the ephemeral record written and read back during
// verification.
type MarkerDocument struct {
	ID        string
	CreatedAt time.Time
}

// NewMarkerDocument creates a marker with a fresh random identifier.
func NewMarkerDocument(now time.Time) MarkerDocument {
	return MarkerDocument{ID: uuid.NewString(), CreatedAt: now.UTC()}
}

// Document returns the marker as a store record.
func (m MarkerDocument) Document() Document {
	return Document{
		MarkerIDField:  m.ID,
		MarkerField:    MarkerValue,
		CreatedAtField: m.CreatedAt,
	}
}

// Filter returns a filter matching only this marker.
func (m MarkerDocument) Filter() Filter {
	return Filter{MarkerIDField: m.ID}
}

// StoreClient is the capability a verification cycle runs against.
//
// Contract:
//   - Each verification cycle owns one StoreClient for its lifetime.
//   - Close releases everything Connect acquired; it is called exactly once
//     after a successful Connect. A failed Connect must release its own
//     partial state.
//   - A stage that exceeds its timeout is abandoned, not awaited, so Close
//     may run while that call is still unwinding. Implementations must be
//     safe for concurrent use.
type StoreClient interface {
	Connect(ctx context.Context) error
	Insert(ctx context.Context, doc Document) (string, error)
	Query(ctx context.Context, filter Filter) ([]Document, error)
	Close(ctx context.Context) error
}

// Deleter is implemented by stores that can remove marker documents.
type Deleter interface {
	Delete(ctx context.Context, filter Filter) (int64, error)
}

// StoreFactory returns a fresh, unconnected StoreClient.
type StoreFactory func() StoreClient

// Stage states reported in StageReport.
const (
	StagePassed      = "passed"
	StageFailed      = "failed"
	StageSkipped     = "skipped"
	StageWarning     = "warning"
	StageUnsupported = "unsupported"
)

// StageReport records how far a verification cycle got.
type StageReport struct {
	Connection string `json:"connection"`
	WriteTest  string `json:"write_test"`
	ReadTest   string `json:"read_test"`
	Cleanup    string `json:"cleanup"`
}

func skippedStages() StageReport {
	return StageReport{
		Connection: StageSkipped,
		WriteTest:  StageSkipped,
		ReadTest:   StageSkipped,
		Cleanup:    StageSkipped,
	}
}

// DependencyVerdict is the outcome of a verification cycle.
type DependencyVerdict struct {
	Outcome        Outcome     `json:"outcome"`
	Detail         string      `json:"detail"`
	DocumentsFound int         `json:"documents_found"`
	Service        string      `json:"service,omitempty"`
	Stages         StageReport `json:"stages"`
	Warnings       []string    `json:"warnings,omitempty"`

	// Err is the classified failure; nil when Outcome is OutcomeHealthy.
	Err error `json:"-"`
}

// VerifierConfig configures the dependency verifier.
type VerifierConfig struct {
	// Service names the store in verdicts and logs.
	// Default: "store"
	Service string

	// StageTimeout bounds each of connect, insert, query, cleanup and close.
	// Default: 5 seconds
	StageTimeout time.Duration

	// Logger receives per-stage events. Default: no logging.
	Logger observe.Logger

	// Now returns the marker creation time. Default: time.Now
	Now func() time.Time
}

// Verifier runs connect, write, read and cleanup against a store.
type Verifier struct {
	config  VerifierConfig
	timeout *resilience.Timeout
}

// NewVerifier creates a dependency verifier.
func NewVerifier(config ...VerifierConfig) *Verifier {
	var cfg VerifierConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Service == "" {
		cfg.Service = "store"
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = DefaultStageTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{
		config:  cfg,
		timeout: resilience.NewTimeout(resilience.TimeoutConfig{Timeout: cfg.StageTimeout}),
	}
}

// Service returns the configured store name.
func (v *Verifier) Service() string {
	return v.config.Service
}

// Verify runs one verification cycle against store.
//
// Each stage is attempted once. Stages run on a context detached from ctx:
// if ctx is canceled the current stage still completes, no further
// protocol stage starts, and cleanup and Close still run.
//
// A stage that times out is abandoned, not awaited. If an abandoned Connect
// later succeeds, its connection is closed; if an abandoned Insert later
// succeeds, its marker is deleted. Close waits up to one stage timeout for
// abandoned calls so that late cleanup can run first.
func (v *Verifier) Verify(ctx context.Context, store StoreClient) (verdict DependencyVerdict) {
	verdict = DependencyVerdict{Service: v.config.Service, Stages: skippedStages()}
	logger := v.config.Logger.With(observe.Field{Key: "service", Value: v.config.Service})

	if store == nil {
		return v.fail(ctx, logger, verdict, OutcomeInternalError,
			fmt.Errorf("%w: nil store client", ErrInternalFault))
	}

	stageCtx := context.WithoutCancel(ctx)

	// START -> CONNECTED
	var connected lateGuard
	err := v.stage(stageCtx, func(ctx context.Context) error {
		if err := store.Connect(ctx); err != nil {
			return err
		}
		connected.done(func() {
			logger.Warn(stageCtx, "closing connection that completed after its stage timeout")
			v.release(stageCtx, logger, store, &DependencyVerdict{})
		})
		return nil
	})
	if err != nil {
		connected.abandon()
		verdict.Stages.Connection = StageFailed
		return v.failStage(ctx, logger, verdict, OutcomeUnreachable, ErrUnreachable, err)
	}
	verdict.Stages.Connection = StagePassed
	logger.Debug(ctx, "store connected")

	var inflight sync.WaitGroup
	defer func() {
		if !v.settle(&inflight) {
			logger.Warn(ctx, "closing store with an abandoned call still running")
		}
		v.release(stageCtx, logger, store, &verdict)
	}()

	if err := ctx.Err(); err != nil {
		return v.fail(ctx, logger, verdict, OutcomeWriteFailed, abandoned(ErrWriteFailed, err))
	}

	// CONNECTED -> WRITTEN
	marker := NewMarkerDocument(v.config.Now())
	var (
		insertedID string
		written    lateGuard
	)
	err = v.stage(stageCtx, tracked(&inflight, func(ctx context.Context) error {
		id, err := store.Insert(ctx, marker.Document())
		if err != nil {
			return err
		}
		if id == "" {
			return fmt.Errorf("%w: store returned an empty document id", ErrInternalFault)
		}
		insertedID = id
		written.done(func() {
			logger.Warn(stageCtx, "removing marker written after its stage timeout", observe.Field{Key: "document_id", Value: id})
			v.cleanup(stageCtx, logger, store, Filter{MarkerIDField: id}, &DependencyVerdict{})
		})
		return nil
	}))
	if err != nil {
		written.abandon()
		verdict.Stages.WriteTest = StageFailed
		return v.failStage(ctx, logger, verdict, OutcomeWriteFailed, ErrWriteFailed, err)
	}
	verdict.Stages.WriteTest = StagePassed
	logger.Debug(ctx, "marker written", observe.Field{Key: "document_id", Value: insertedID})
	defer v.cleanup(stageCtx, logger, store, Filter{MarkerIDField: insertedID}, &verdict)

	if err := ctx.Err(); err != nil {
		return v.fail(ctx, logger, verdict, OutcomeReadFailed, abandoned(ErrReadFailed, err))
	}

	// WRITTEN -> VERIFIED
	var docs []Document
	err = v.stage(stageCtx, tracked(&inflight, func(ctx context.Context) error {
		found, err := store.Query(ctx, Filter{MarkerIDField: insertedID})
		if err != nil {
			return err
		}
		docs = found
		return nil
	}))
	if err != nil {
		verdict.Stages.ReadTest = StageFailed
		return v.failStage(ctx, logger, verdict, OutcomeReadFailed, ErrReadFailed, err)
	}
	verdict.DocumentsFound = len(docs)
	if len(docs) == 0 {
		verdict.Stages.ReadTest = StageFailed
		return v.fail(ctx, logger, verdict, OutcomeReadFailed,
			fmt.Errorf("%w: marker document %s not found", ErrReadFailed, insertedID))
	}
	if !containsID(docs, insertedID) {
		verdict.Stages.ReadTest = StageFailed
		return v.fail(ctx, logger, verdict, OutcomeInternalError,
			fmt.Errorf("%w: query returned %d documents without the marker id", ErrInternalFault, len(docs)))
	}
	verdict.Stages.ReadTest = StagePassed

	verdict.Outcome = OutcomeHealthy
	verdict.Detail = fmt.Sprintf("%s verification passed", v.config.Service)
	logger.Info(ctx, "dependency verified", observe.Field{Key: "documents_found", Value: len(docs)})
	return verdict
}

// stage runs op under the stage timeout, converting panics into
// ErrInternalFault.
func (v *Verifier) stage(ctx context.Context, op func(context.Context) error) error {
	return v.timeout.Execute(ctx, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: panic: %v", ErrInternalFault, r)
			}
		}()
		return op(ctx)
	})
}

func (v *Verifier) cleanup(ctx context.Context, logger observe.Logger, store StoreClient, filter Filter, verdict *DependencyVerdict) {
	deleter, ok := store.(Deleter)
	if !ok {
		verdict.Stages.Cleanup = StageUnsupported
		verdict.Warnings = append(verdict.Warnings, ErrCleanupUnsupported.Error())
		logger.Warn(ctx, "marker cleanup skipped", observe.Field{Key: "error", Value: ErrCleanupUnsupported.Error()})
		return
	}

	var removed int64
	err := v.stage(ctx, func(ctx context.Context) error {
		n, err := deleter.Delete(ctx, filter)
		removed = n
		return err
	})
	switch {
	case err != nil:
		verdict.Stages.Cleanup = StageWarning
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf("cleanup failed: %v", err))
		logger.Warn(ctx, "marker cleanup failed", observe.Field{Key: "error", Value: err.Error()})
	case removed == 0:
		verdict.Stages.Cleanup = StageWarning
		verdict.Warnings = append(verdict.Warnings, "cleanup removed no documents")
		logger.Warn(ctx, "marker cleanup removed no documents")
	default:
		verdict.Stages.Cleanup = StagePassed
	}
}

func (v *Verifier) release(ctx context.Context, logger observe.Logger, store StoreClient, verdict *DependencyVerdict) {
	if err := v.stage(ctx, store.Close); err != nil {
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf("close failed: %v", err))
		logger.Warn(ctx, "store close failed", observe.Field{Key: "error", Value: err.Error()})
		return
	}
	logger.Debug(ctx, "store connection released")
}

func (v *Verifier) fail(ctx context.Context, logger observe.Logger, verdict DependencyVerdict, outcome Outcome, err error) DependencyVerdict {
	verdict.Outcome = outcome
	verdict.Detail = err.Error()
	verdict.Err = err
	logger.Error(ctx, "dependency verification failed",
		observe.Field{Key: "outcome", Value: outcome.String()},
		observe.Field{Key: "error", Value: err.Error()},
	)
	return verdict
}

// failStage classifies a stage error. Internal faults override the stage
// outcome; everything else, timeouts included, is the stage's failure.
func (v *Verifier) failStage(ctx context.Context, logger observe.Logger, verdict DependencyVerdict, outcome Outcome, stage error, err error) DependencyVerdict {
	if errors.Is(err, ErrInternalFault) {
		return v.fail(ctx, logger, verdict, OutcomeInternalError, err)
	}
	return v.fail(ctx, logger, verdict, outcome, fmt.Errorf("%w: %w", stage, err))
}

// tracked registers op with wg before it starts.
func tracked(wg *sync.WaitGroup, op func(context.Context) error) func(context.Context) error {
	wg.Add(1)
	return func(ctx context.Context) error {
		defer wg.Done()
		return op(ctx)
	}
}

// settle waits up to one stage timeout for abandoned store calls to return,
// so a late insert is cleaned up before Close. It reports whether they did.
func (v *Verifier) settle(inflight *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(v.config.StageTimeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

// lateGuard undoes a stage that succeeded after the verifier stopped
// waiting for it. Whichever of done and abandon runs second triggers the
// undo, so it runs at most once and only for a stage the verdict counts as
// failed.
type lateGuard struct {
	mu        sync.Mutex
	undo      func()
	abandoned bool
}

func (g *lateGuard) done(undo func()) {
	g.mu.Lock()
	if !g.abandoned {
		g.undo = undo
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	undo()
}

func (g *lateGuard) abandon() {
	g.mu.Lock()
	g.abandoned = true
	undo := g.undo
	g.undo = nil
	g.mu.Unlock()
	if undo != nil {
		undo()
	}
}

func abandoned(stage error, cause error) error {
	return fmt.Errorf("%w: probe abandoned before stage: %w", stage, cause)
}

func containsID(docs []Document, id string) bool {
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if fmt.Sprint(doc[MarkerIDField]) == id {
			return true
		}
	}
	return false
}
