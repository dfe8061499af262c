package pipeline_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/open-build/ogc-pipeline/pipeline"
)

// Test data helpers

// address builds a well-formed-looking recipient address: 'G' plus 55 digits.
func address(n int) string {
	return fmt.Sprintf("G%055d", n)
}

func submission(n int) pipeline.Submission {
	return pipeline.Submission{
		Address:     address(n),
		Contact:     fmt.Sprintf("dev%d@example.org", n),
		ProjectName: fmt.Sprintf("project-%d", n),
	}
}

func fixedPolicy(amount string) pipeline.AmountPolicy {
	return pipeline.FixedAmount{Amount: decimal.RequireFromString(amount)}
}

// Error types exercising the capability interfaces

type transientErr struct{ msg string }

func (e transientErr) Error() string          { return e.msg }
func (e transientErr) TransientNetwork() bool { return true }

type fundingErr struct{ msg string }

func (e fundingErr) Error() string          { return e.msg }
func (e fundingErr) FundingExhausted() bool { return true }

// Mock implementations

// instantClock implements Clock with immediate ticks for deterministic tests
type instantClock struct{}

func (instantClock) After(_ time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return ch
}

func (instantClock) Now() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// fakeClock implements Clock with externally driven ticks
type fakeClock struct {
	tick       chan time.Time
	afterCalls int
}

func (f *fakeClock) After(_ time.Duration) <-chan time.Time {
	f.afterCalls++
	return f.tick
}

func (f *fakeClock) Now() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// prefilledClock returns a fakeClock whose next n After calls fire instantly
func prefilledClock(n int) *fakeClock {
	clk := &fakeClock{tick: make(chan time.Time, n)}
	for range n {
		clk.tick <- clk.Now()
	}
	return clk
}

// mockStore implements Store with the same monotonic upsert rule as the
// database: a record that reached "sent" is never overwritten.
type mockStore struct {
	mu        sync.Mutex
	records   map[string]pipeline.ProcessedRecord
	outcomes  []pipeline.PaymentOutcome
	lookupErr error
	recordErr error
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[string]pipeline.ProcessedRecord)}
}

func (m *mockStore) Lookup(_ context.Context, identity string) (*pipeline.ProcessedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	rec, ok := m.records[identity]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *mockStore) Record(_ context.Context, rec pipeline.ProcessedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	if prior, ok := m.records[rec.Identity]; ok && prior.Status == pipeline.RecordSent {
		return nil
	}
	m.records[rec.Identity] = rec
	return nil
}

func (m *mockStore) SaveOutcome(_ context.Context, out pipeline.PaymentOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, out)
	return nil
}

func (m *mockStore) record(identity string) (pipeline.ProcessedRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[identity]
	return rec, ok
}

func (m *mockStore) preload(rec pipeline.ProcessedRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Identity] = rec
}

// mockNetwork implements NetworkClient with per-address behavior overrides
type mockNetwork struct {
	mu             sync.Mutex
	missing        map[string]bool  // accounts absent from the ledger
	noPrerequisite map[string]bool  // accounts without the asset trustline
	submitErrs     map[string]error // per-address submission failures
	existsFailures int              // transient failures before AccountExists succeeds
	refs           int
	submitted      []string
}

func newMockNetwork() *mockNetwork {
	return &mockNetwork{
		missing:        make(map[string]bool),
		noPrerequisite: make(map[string]bool),
		submitErrs:     make(map[string]error),
	}
}

func (m *mockNetwork) AddressIsWellFormed(address string) bool {
	return len(address) == 56 && strings.HasPrefix(address, "G")
}

func (m *mockNetwork) AccountExists(_ context.Context, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsFailures > 0 {
		m.existsFailures--
		return false, transientErr{msg: "connection reset"}
	}
	return !m.missing[address], nil
}

func (m *mockNetwork) HasPrerequisite(_ context.Context, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.noPrerequisite[address], nil
}

func (m *mockNetwork) SubmitPayment(_ context.Context, address string, _ decimal.Decimal) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.submitErrs[address]; err != nil {
		return "", err
	}
	m.refs++
	m.submitted = append(m.submitted, address)
	return fmt.Sprintf("tx-%04d", m.refs), nil
}

func (m *mockNetwork) submittedAddresses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.submitted...)
}
