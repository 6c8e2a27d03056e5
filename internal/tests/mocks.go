package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"tuition/internal/domain"
	"tuition/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK STORE (TxManager + repositories)
// ──────────────────────────────────────────────

// MockStore is an in-memory repository.TxManager. Transactions are serialized
// and a failed transaction restores the snapshot taken when it began.
type MockStore struct {
	mu       sync.Mutex
	parents  map[int64]*domain.Parent
	students map[int64]*domain.Student
	payments []*domain.Payment
	nextID   int64
	inTx     atomic.Bool

	// Counters for verification
	WithTxCallCount       int32
	DebitCallCount        int32
	CreditCallCount       int32
	CountParentsCallCount int32
	ListParentsCallCount  int32

	// Error injection
	DebitErrors       map[int64]error
	CreditError       error
	CountParentsError error
}

// NewMockStore creates a new mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		parents:     make(map[int64]*domain.Parent),
		students:    make(map[int64]*domain.Student),
		DebitErrors: make(map[int64]error),
	}
}

// AddParent adds a parent to the mock store.
func (s *MockStore) AddParent(id int64, balance string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents[id] = &domain.Parent{ID: id, Name: "parent", Balance: decimal.RequireFromString(balance)}
}

// AddStudent adds a student linked to the given parents.
func (s *MockStore) AddStudent(id int64, parentIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[id] = &domain.Student{ID: id, Name: "student", Balance: decimal.Zero, ParentIDs: parentIDs}
}

// ParentBalance returns the committed balance of a parent.
func (s *MockStore) ParentBalance(id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parents[id].Balance
}

// StudentBalance returns the committed balance of a student.
func (s *MockStore) StudentBalance(id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.students[id].Balance
}

// Payments returns a copy of every committed payment record.
func (s *MockStore) Payments() []domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, *p)
	}
	return out
}

func (s *MockStore) WithTx(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	atomic.AddInt32(&s.WithTxCallCount, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	s.inTx.Store(true)
	defer s.inTx.Store(false)

	if err := fn(mockUnitOfWork{s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	parents  map[int64]domain.Parent
	students map[int64]domain.Student
	payments int
	nextID   int64
}

func (s *MockStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		parents:  make(map[int64]domain.Parent, len(s.parents)),
		students: make(map[int64]domain.Student, len(s.students)),
		payments: len(s.payments),
		nextID:   s.nextID,
	}
	for id, p := range s.parents {
		snap.parents[id] = *p
	}
	for id, st := range s.students {
		snap.students[id] = *st
	}
	return snap
}

func (s *MockStore) restore(snap storeSnapshot) {
	for id, p := range snap.parents {
		p := p
		s.parents[id] = &p
	}
	for id, st := range snap.students {
		st := st
		s.students[id] = &st
	}
	s.payments = s.payments[:snap.payments]
	s.nextID = snap.nextID
}

func (s *MockStore) insert(payment *domain.Payment) {
	s.nextID++
	payment.ID = s.nextID
	stored := *payment
	s.payments = append(s.payments, &stored)
}

type mockUnitOfWork struct {
	s *MockStore
}

func (u mockUnitOfWork) Parents() repository.ParentRepository           { return mockParents{u.s} }
func (u mockUnitOfWork) Students() repository.StudentRepository         { return mockStudents{u.s} }
func (u mockUnitOfWork) Associations() repository.AssociationRepository { return mockAssociations{u.s} }
func (u mockUnitOfWork) Payments() repository.PaymentRepository         { return mockPayments{u.s} }

type mockParents struct{ s *MockStore }

func (m mockParents) GetByID(ctx context.Context, id int64) (*domain.Parent, error) {
	parent, ok := m.s.parents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *parent
	return &copy, nil
}

func (m mockParents) GetAll(ctx context.Context) ([]*domain.Parent, error) {
	var parents []*domain.Parent
	for _, p := range m.s.parents {
		copy := *p
		parents = append(parents, &copy)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i].ID < parents[j].ID })
	return parents, nil
}

func (m mockParents) Debit(ctx context.Context, id int64, amount decimal.Decimal) error {
	atomic.AddInt32(&m.s.DebitCallCount, 1)
	if err := m.s.DebitErrors[id]; err != nil {
		return err
	}
	parent, ok := m.s.parents[id]
	if !ok {
		return repository.ErrNotFound
	}
	if parent.Balance.LessThan(amount) {
		return repository.ErrInsufficientFunds
	}
	parent.Balance = parent.Balance.Sub(amount)
	return nil
}

type mockStudents struct{ s *MockStore }

func (m mockStudents) GetByID(ctx context.Context, id int64) (*domain.Student, error) {
	student, ok := m.s.students[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *student
	return &copy, nil
}

func (m mockStudents) GetAll(ctx context.Context) ([]*domain.Student, error) {
	var students []*domain.Student
	for _, st := range m.s.students {
		copy := *st
		students = append(students, &copy)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (m mockStudents) Credit(ctx context.Context, id int64, amount decimal.Decimal) error {
	atomic.AddInt32(&m.s.CreditCallCount, 1)
	if m.s.CreditError != nil {
		return m.s.CreditError
	}
	student, ok := m.s.students[id]
	if !ok {
		return repository.ErrNotFound
	}
	student.Balance = student.Balance.Add(amount)
	return nil
}

type mockAssociations struct{ s *MockStore }

func (m mockAssociations) IsAssociated(ctx context.Context, parentID, studentID int64) (bool, error) {
	student, ok := m.s.students[studentID]
	return ok && hasParent(student, parentID), nil
}

func hasParent(student *domain.Student, parentID int64) bool {
	for _, id := range student.ParentIDs {
		if id == parentID {
			return true
		}
	}
	return false
}

func (m mockAssociations) CountParents(ctx context.Context, studentID int64) (int, error) {
	atomic.AddInt32(&m.s.CountParentsCallCount, 1)
	if m.s.CountParentsError != nil {
		return 0, m.s.CountParentsError
	}
	student, ok := m.s.students[studentID]
	if !ok {
		return 0, nil
	}
	return len(student.ParentIDs), nil
}

func (m mockAssociations) ListParents(ctx context.Context, studentID int64) ([]int64, error) {
	atomic.AddInt32(&m.s.ListParentsCallCount, 1)
	student, ok := m.s.students[studentID]
	if !ok {
		return nil, nil
	}
	ids := append([]int64(nil), student.ParentIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type mockPayments struct{ s *MockStore }

func (m mockPayments) Create(ctx context.Context, payment *domain.Payment) error {
	m.s.insert(payment)
	return nil
}

func (m mockPayments) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	for _, p := range m.s.payments {
		if p.ID == id {
			copy := *p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m mockPayments) List(ctx context.Context, filter repository.PaymentFilter) ([]*domain.Payment, error) {
	var out []*domain.Payment
	for _, p := range m.s.payments {
		if filter.ParentID != 0 && p.ParentID != filter.ParentID {
			continue
		}
		if filter.StudentID != 0 && p.StudentID != filter.StudentID {
			continue
		}
		copy := *p
		out = append(out, &copy)
	}
	return out, nil
}

// PaymentReader returns a payment repository that reads committed records.
func (s *MockStore) PaymentReader() repository.PaymentRepository {
	return lockedPayments{s}
}

type lockedPayments struct{ s *MockStore }

func (l lockedPayments) Create(ctx context.Context, payment *domain.Payment) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return mockPayments{l.s}.Create(ctx, payment)
}

func (l lockedPayments) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return mockPayments{l.s}.GetByID(ctx, id)
}

func (l lockedPayments) List(ctx context.Context, filter repository.PaymentFilter) ([]*domain.Payment, error) {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return mockPayments{l.s}.List(ctx, filter)
}

// ──────────────────────────────────────────────
// MOCK LEDGER
// ──────────────────────────────────────────────

// MockLedger commits records straight into a MockStore, outside any transaction.
type MockLedger struct {
	store *MockStore

	// Counters for verification
	RecordCallCount int32
	// RecordedDuringTx is set if Record was called while a transaction was open.
	RecordedDuringTx atomic.Bool

	// Error injection
	RecordError error
}

// NewMockLedger creates a new mock ledger writing into store.
func NewMockLedger(store *MockStore) *MockLedger {
	return &MockLedger{store: store}
}

func (l *MockLedger) Record(ctx context.Context, payment *domain.Payment) (int64, error) {
	atomic.AddInt32(&l.RecordCallCount, 1)
	if l.store.inTx.Load() {
		l.RecordedDuringTx.Store(true)
	}
	if l.RecordError != nil {
		return 0, l.RecordError
	}

	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.insert(payment)
	return payment.ID, nil
}

// Ensure mocks implement interfaces.
var (
	_ repository.TxManager         = (*MockStore)(nil)
	_ repository.PaymentRepository = lockedPayments{}
)
