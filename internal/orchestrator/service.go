// Package orchestrator wires acquisition, parsing, reconciliation and
// notification into caller-facing operations. It holds no state between
// runs; every run fetches the registry and portal data fresh.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	billingcycle "utilibill/internal/billingcycle/domain"
	"utilibill/internal/maildraft"
	"utilibill/internal/notification"
	"utilibill/internal/observability/metrics"
	reconcile "utilibill/internal/reconcile/domain"
	registry "utilibill/internal/registry/domain"
	runstore "utilibill/internal/runstore/postgres"
)

// Source fetches one export file covering the window. The returned path
// is a temp file owned by the caller.
type Source interface {
	Fetch(ctx context.Context, window billingcycle.Window, now time.Time) (string, error)
}

// ExportParser turns an export file into usage records.
type ExportParser interface {
	ParseFile(path string) ([]reconcile.UsageRecord, error)
}

// RegistryLoader loads the property registry.
type RegistryLoader interface {
	LoadFile(path string) ([]registry.Entry, error)
}

// Archive persists finished runs. Archival is best effort: a failing
// archive never fails the run.
type Archive interface {
	SaveRun(ctx context.Context, run runstore.Run, events []reconcile.OverageEvent) error
}

// Drafter creates mail drafts from notification payloads.
type Drafter interface {
	CreateDraft(ctx context.Context, payload *notification.Payload) (maildraft.Draft, error)
}

// RunResult is the outcome of one reconciliation run.
type RunResult struct {
	ID         string
	Cycle      billingcycle.Cycle
	Window     billingcycle.Window
	Events     []reconcile.OverageEvent
	Entries    map[string]registry.Entry
	SourceFile string
	StartedAt  time.Time
	FinishedAt time.Time
}

// EventFor returns the overage event for a property, if the run emitted
// one.
func (r *RunResult) EventFor(propertyKey string) (reconcile.OverageEvent, bool) {
	for _, event := range r.Events {
		if event.PropertyKey == propertyKey {
			return event, true
		}
	}
	return reconcile.OverageEvent{}, false
}

// Service runs reconciliations and builds notifications.
type Service struct {
	calculator   billingcycle.Calculator
	source       Source
	parser       ExportParser
	loader       RegistryLoader
	registryPath string
	reconciler   *reconcile.Reconciler
	assembler    *notification.Assembler
	drafter      Drafter
	archive      Archive
	logger       *log.Logger
	keepExports  bool
}

// Option configures a Service.
type Option func(*Service)

// WithArchive enables run archival.
func WithArchive(archive Archive) Option {
	return func(s *Service) { s.archive = archive }
}

// WithDrafter enables mail draft creation.
func WithDrafter(drafter Drafter) Option {
	return func(s *Service) { s.drafter = drafter }
}

// WithLogger attaches a logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithKeepExports disables temp export cleanup, for debugging portal
// output.
func WithKeepExports() Option {
	return func(s *Service) { s.keepExports = true }
}

// NewService constructs a Service.
func NewService(
	calculator billingcycle.Calculator,
	source Source,
	parser ExportParser,
	loader RegistryLoader,
	registryPath string,
	reconciler *reconcile.Reconciler,
	assembler *notification.Assembler,
	opts ...Option,
) (*Service, error) {
	if source == nil {
		return nil, errors.New("orchestrator: nil source")
	}
	if parser == nil {
		return nil, errors.New("orchestrator: nil parser")
	}
	if loader == nil {
		return nil, errors.New("orchestrator: nil registry loader")
	}
	if registryPath == "" {
		return nil, errors.New("orchestrator: empty registry path")
	}
	if reconciler == nil {
		return nil, errors.New("orchestrator: nil reconciler")
	}
	if assembler == nil {
		return nil, errors.New("orchestrator: nil assembler")
	}
	s := &Service{
		calculator:   calculator,
		source:       source,
		parser:       parser,
		loader:       loader,
		registryPath: registryPath,
		reconciler:   reconciler,
		assembler:    assembler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RunReconciliation executes one full run for the cycle derived from now.
func (s *Service) RunReconciliation(ctx context.Context, now time.Time) (*RunResult, error) {
	startedAt := time.Now().UTC()
	result, err := s.runReconciliation(ctx, now, startedAt)
	outcome := metrics.ResultSuccess
	if err != nil {
		outcome = metrics.ResultError
	}
	eventCount := 0
	if result != nil {
		eventCount = len(result.Events)
	}
	metrics.ObserveRun(outcome, time.Since(startedAt), eventCount)
	return result, err
}

func (s *Service) runReconciliation(ctx context.Context, now, startedAt time.Time) (*RunResult, error) {
	cycle, window, err := s.calculator.Compute(now)
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Printf("run: cycle %s, window %d months", cycle.Label(), window.MonthsBack)
	}

	// Fail on a broken registry before any browser work starts.
	entries, err := s.loader.LoadFile(s.registryPath)
	if err != nil {
		return nil, err
	}

	path, err := s.source.Fetch(ctx, window, now)
	if err != nil {
		return nil, err
	}
	defer s.cleanupExport(path)

	if info, err := os.Stat(path); err == nil {
		metrics.ObserveDownloadSize(info.Size())
	}

	records, err := s.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	events, err := s.reconciler.Reconcile(records, entries, cycle)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		ID:         uuid.NewString(),
		Cycle:      cycle,
		Window:     window,
		Events:     events,
		Entries:    registry.Index(entries),
		SourceFile: path,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	s.archiveRun(ctx, result)
	return result, nil
}

func (s *Service) archiveRun(ctx context.Context, result *RunResult) {
	if s.archive == nil {
		return
	}
	run := runstore.Run{
		ID:           result.ID,
		CycleLabel:   result.Cycle.Label(),
		CycleStart:   result.Cycle.Start(),
		WindowMonths: result.Window.MonthsBack,
		Status:       "completed",
		SourceFile:   result.SourceFile,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
	}
	if err := s.archive.SaveRun(ctx, run, result.Events); err != nil && s.logger != nil {
		s.logger.Printf("run %s: archive failed: %v", result.ID, err)
	}
}

func (s *Service) cleanupExport(path string) {
	if s.keepExports || path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) && s.logger != nil {
		s.logger.Printf("run: remove export %s: %v", path, err)
	}
}

// BuildNotification assembles the payload for one property of a finished
// run.
func (s *Service) BuildNotification(ctx context.Context, run *RunResult, propertyKey string) (*notification.Payload, error) {
	if run == nil {
		return nil, errors.New("orchestrator: nil run")
	}
	event, ok := run.EventFor(propertyKey)
	if !ok {
		return nil, fmt.Errorf("orchestrator: no overage for %q in run %s", propertyKey, run.ID)
	}
	entry, ok := run.Entries[propertyKey]
	if !ok {
		return nil, fmt.Errorf("orchestrator: no registry entry for %q", propertyKey)
	}
	payload, err := s.assembler.Build(ctx, event, entry)
	if err != nil {
		metrics.IncNotificationBuilt(metrics.ResultError)
		return nil, err
	}
	metrics.IncNotificationBuilt(metrics.ResultSuccess)
	return payload, nil
}

// DraftNotification builds the payload and hands it to the drafting
// service.
func (s *Service) DraftNotification(ctx context.Context, run *RunResult, propertyKey string) (maildraft.Draft, error) {
	if s.drafter == nil {
		return maildraft.Draft{}, errors.New("orchestrator: drafting not configured")
	}
	payload, err := s.BuildNotification(ctx, run, propertyKey)
	if err != nil {
		return maildraft.Draft{}, err
	}
	draft, err := s.drafter.CreateDraft(ctx, payload)
	if err != nil {
		metrics.IncDraftCreated(metrics.ResultError)
		return maildraft.Draft{}, err
	}
	metrics.IncDraftCreated(metrics.ResultSuccess)
	if s.logger != nil {
		s.logger.Printf("run %s: draft %s created for %s", run.ID, draft.ID, propertyKey)
	}
	return draft, nil
}
