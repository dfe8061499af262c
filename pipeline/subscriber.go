package pipeline

// Subscriber handles event subscriptions.
type Subscriber struct {
	done                       chan struct{}
	runStartedHandler          func(RunStarted)
	rowSkippedHandler          func(RowSkipped)
	inputNormalizedHandler     func(InputNormalized)
	submissionValidatedHandler func(SubmissionValidated)
	validationCompletedHandler func(ValidationCompleted)
	batchStartedHandler        func(BatchStarted)
	paymentProcessedHandler    func(PaymentProcessed)
	runHaltedHandler           func(RunHalted)
	runCompletedHandler        func(RunCompleted)
	runErrorHandler            func(RunError)
}

// OnRunStarted sets the handler for RunStarted events
func OnRunStarted(fn func(RunStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.runStartedHandler = fn }
}

// OnRowSkipped sets the handler for RowSkipped events
func OnRowSkipped(fn func(RowSkipped)) func(*Subscriber) {
	return func(s *Subscriber) { s.rowSkippedHandler = fn }
}

// OnInputNormalized sets the handler for InputNormalized events
func OnInputNormalized(fn func(InputNormalized)) func(*Subscriber) {
	return func(s *Subscriber) { s.inputNormalizedHandler = fn }
}

// OnSubmissionValidated sets the handler for SubmissionValidated events
func OnSubmissionValidated(fn func(SubmissionValidated)) func(*Subscriber) {
	return func(s *Subscriber) { s.submissionValidatedHandler = fn }
}

// OnValidationCompleted sets the handler for ValidationCompleted events
func OnValidationCompleted(fn func(ValidationCompleted)) func(*Subscriber) {
	return func(s *Subscriber) { s.validationCompletedHandler = fn }
}

// OnBatchStarted sets the handler for BatchStarted events
func OnBatchStarted(fn func(BatchStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.batchStartedHandler = fn }
}

// OnPaymentProcessed sets the handler for PaymentProcessed events
func OnPaymentProcessed(fn func(PaymentProcessed)) func(*Subscriber) {
	return func(s *Subscriber) { s.paymentProcessedHandler = fn }
}

// OnRunHalted sets the handler for RunHalted events
func OnRunHalted(fn func(RunHalted)) func(*Subscriber) {
	return func(s *Subscriber) { s.runHaltedHandler = fn }
}

// OnRunCompleted sets the handler for RunCompleted events
func OnRunCompleted(fn func(RunCompleted)) func(*Subscriber) {
	return func(s *Subscriber) { s.runCompletedHandler = fn }
}

// OnRunError sets the handler for RunError events
func OnRunError(fn func(RunError)) func(*Subscriber) {
	return func(s *Subscriber) { s.runErrorHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options and starts the
// dispatch loop. Returns a closer function that waits for all events to be
// processed.
//
// Cleanup guarantee pattern:
//
//	closer := pipeline.NewSubscriber(events,
//	  pipeline.OnRunCompleted(func(e pipeline.RunCompleted) { ... }),
//	)
//	defer closer()  // Ensures all events processed before exit
//
// The subscriber processes events until the events channel closes, then the
// closer function confirms all processing is complete.
func NewSubscriber(events <-chan Event, opts ...func(*Subscriber)) func() {
	s := &Subscriber{
		done:                       make(chan struct{}),
		runStartedHandler:          func(RunStarted) {},          // nop by default
		rowSkippedHandler:          func(RowSkipped) {},          // nop by default
		inputNormalizedHandler:     func(InputNormalized) {},     // nop by default
		submissionValidatedHandler: func(SubmissionValidated) {}, // nop by default
		validationCompletedHandler: func(ValidationCompleted) {}, // nop by default
		batchStartedHandler:        func(BatchStarted) {},        // nop by default
		paymentProcessedHandler:    func(PaymentProcessed) {},    // nop by default
		runHaltedHandler:           func(RunHalted) {},           // nop by default
		runCompletedHandler:        func(RunCompleted) {},        // nop by default
		runErrorHandler:            func(RunError) {},            // nop by default
	}

	for _, opt := range opts {
		opt(s)
	}

	// Start the dispatch loop immediately
	go func() {
		defer close(s.done)
		for ev := range events {
			switch e := ev.(type) {
			case RunStarted:
				s.runStartedHandler(e)
			case RowSkipped:
				s.rowSkippedHandler(e)
			case InputNormalized:
				s.inputNormalizedHandler(e)
			case SubmissionValidated:
				s.submissionValidatedHandler(e)
			case ValidationCompleted:
				s.validationCompletedHandler(e)
			case BatchStarted:
				s.batchStartedHandler(e)
			case PaymentProcessed:
				s.paymentProcessedHandler(e)
			case RunHalted:
				s.runHaltedHandler(e)
			case RunCompleted:
				s.runCompletedHandler(e)
			case RunError:
				s.runErrorHandler(e)
			}
		}
	}()

	return func() {
		<-s.done
	}
}
