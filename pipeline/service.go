package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/open-build/ogc-pipeline/pkg/clock"
	"github.com/open-build/ogc-pipeline/pkg/retry"
)

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithRetry sets the bounded-retry policy for network calls
func WithRetry(p retry.Policy) Option {
	return func(s *Service) { s.retry = p }
}

// WithValidatorOptions forwards options to the internal Validator
func WithValidatorOptions(opts ...ValidatorOption) Option {
	return func(s *Service) { s.validatorOpts = append(s.validatorOpts, opts...) }
}

// WithDistributorOptions forwards options to the internal Distributor
func WithDistributorOptions(opts ...DistributorOption) Option {
	return func(s *Service) { s.distributorOpts = append(s.distributorOpts, opts...) }
}

// Service runs the full pipeline: normalize, validate, distribute, report
// -----------------------------------------------------------------------
type Service struct {
	source    io.Reader
	network   NetworkClient
	store     Store
	policy    AmountPolicy
	allocator *FundAllocator

	clock clock.Clock
	retry retry.Policy

	validatorOpts   []ValidatorOption
	distributorOpts []DistributorOption
	validator       *Validator
	distributor     *Distributor

	events chan Event
}

// NewService constructs a Service with required dependencies and options
// ---------------------------------------------------------------------
// The source reader carries the raw form export; network, store, policy and
// allocator are the validated collaborators built from configuration.
func NewService(source io.Reader, network NetworkClient, store Store, policy AmountPolicy, allocator *FundAllocator, opts ...Option) *Service {
	s := &Service{
		source:    source,
		network:   network,
		store:     store,
		policy:    policy,
		allocator: allocator,
		clock:     clock.SystemClock{},
		retry:     retry.NewPolicy(3, 2*time.Second),
		events:    make(chan Event, 10),
	}
	for _, opt := range opts {
		opt(s)
	}

	vopts := append([]ValidatorOption{
		WithValidatorClock(s.clock),
		WithValidatorRetry(s.retry),
	}, s.validatorOpts...)
	s.validator = NewValidator(s.network, s.store, vopts...)

	dopts := append([]DistributorOption{
		WithDistributorClock(s.clock),
		WithPaymentRetry(s.retry),
		WithDistributorNotify(func(e Event) { s.events <- e }),
	}, s.distributorOpts...)
	s.distributor = NewDistributor(s.network, s.store, s.policy, dopts...)

	return s
}

// Start launches the pipeline run and returns the events channel and done
// channel.
//
// Shutdown pattern:
//  1. Cancel context to request shutdown: cancel()
//  2. Service stops producing events and closes events channel
//  3. Wait for complete shutdown: <-done
//
// Example:
//
//	events, done := service.Start(ctx)
//	defer func() {
//	  cancel()    // 1. Request shutdown
//	  <-done      // 2. Wait for complete shutdown
//	}()
//
// The context signals when to stop, the done channel confirms when stopped.
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(s.events)
		defer close(done)
		s.run(ctx)
	}()
	return s.events, done
}

// run orchestrates one pipeline pass, respecting context cancellation
// -------------------------------------------------------------------
// Every run produces a report unless normalization or the state tracker
// fails outright; halted runs report what was processed up to the halt.
func (s *Service) run(ctx context.Context) {
	start := s.clock.Now()
	runID := uuid.NewString()
	s.events <- RunStarted{RunID: runID, StartedAt: start}

	subs, dropped, err := NormalizeSubmissions(s.source)
	if err != nil {
		s.events <- RunError{Err: fmt.Errorf("%w: %w", ErrNormalizeFailed, err)}
		return
	}
	for _, d := range dropped {
		s.events <- RowSkipped{Row: d.Row, Reason: d.Reason}
	}
	s.events <- InputNormalized{Submissions: len(subs), Dropped: len(dropped)}

	results, haltErr := s.validateAll(ctx, subs)
	if haltErr != nil && !errors.Is(haltErr, ErrRunCancelled) {
		s.events <- RunError{Err: haltErr}
		return
	}

	var approved []Submission
	counts := ValidationCompleted{}
	for _, res := range results {
		switch res.Status {
		case StatusApproved:
			counts.Approved++
			approved = append(approved, res.Submission)
		case StatusPendingPrerequisite:
			counts.Pending++
		case StatusRejected:
			counts.Rejected++
		}
	}
	s.events <- counts

	var outcomes []PaymentOutcome
	if haltErr == nil {
		outcomes, err = s.distributor.Distribute(ctx, approved)
		if err != nil {
			if !errors.Is(err, ErrFundingExhausted) && !errors.Is(err, ErrRunCancelled) {
				s.events <- RunError{Err: err}
				return
			}
			haltErr = err
		}
	}

	unprocessed := (len(subs) - len(results)) + (len(approved) - len(outcomes))
	if haltErr != nil {
		s.events <- RunHalted{Err: haltErr, Unprocessed: unprocessed}
	}

	total := decimal.Zero
	for _, out := range outcomes {
		if out.Status == OutcomeSent {
			total = total.Add(out.Amount)
		}
	}
	fund, err := s.allocator.Allocate(total)
	if err != nil {
		s.events <- RunError{Err: err}
		return
	}

	report := Summarize(results, outcomes, fund)
	report.RunID = runID
	report.GeneratedAt = s.clock.Now()
	report.DroppedRows = len(dropped)
	if haltErr != nil {
		report.Halt = haltErr.Error()
		report.Unprocessed = unprocessed
	}

	s.events <- RunCompleted{Report: report, Duration: s.clock.Now().Sub(start)}
}

// validateAll checks submissions in input order, emitting one event per
// result. Cancellation returns the partial results with a halt error; a
// state tracker failure is returned as-is and aborts the run.
func (s *Service) validateAll(ctx context.Context, subs []Submission) ([]ValidationResult, error) {
	results := make([]ValidationResult, 0, len(subs))
	for _, sub := range subs {
		res, err := s.validator.Validate(ctx, sub)
		if err != nil {
			if ctx.Err() != nil {
				return results, fmt.Errorf("%w: %w", ErrRunCancelled, ctx.Err())
			}
			return results, err
		}
		results = append(results, res)
		s.events <- SubmissionValidated{Result: res}
	}
	return results, nil
}
