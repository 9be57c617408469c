package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/hei-liquidation/internal/application/dispatcher"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/domain/event"
	domainwf "github.com/garyjia/hei-liquidation/internal/domain/workflow"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/lock"
	"github.com/garyjia/hei-liquidation/internal/testutil/memstore"
)

// Mock implementations

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockDispatcher struct {
	mu         sync.Mutex
	events     []*event.Event
	subscribed map[event.Type]string
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeAll(eventTypes []event.Type, name string, handler dispatcher.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribed == nil {
		m.subscribed = make(map[event.Type]string)
	}
	for _, t := range eventTypes {
		m.subscribed[t] = name
	}
}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	_ = m.Dispatch(ctx, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo { return nil }

func (m *mockDispatcher) Close() error { return nil }

func (m *mockDispatcher) last() *event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

type mockActivity struct {
	mu      sync.Mutex
	entries []entity.ActivityLog
}

func (m *mockActivity) Log(ctx context.Context, entry entity.ActivityLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func (m *mockActivity) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.EntityType+":"+e.Action)
	}
	return out
}

type memFileStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
	fail  error
}

func newMemFileStorage() *memFileStorage {
	return &memFileStorage{blobs: make(map[string][]byte)}
}

func (m *memFileStorage) Save(ctx context.Context, key string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.blobs[key] = append([]byte(nil), content...)
	return nil
}

func (m *memFileStorage) Read(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

func (m *memFileStorage) Exists(ctx context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

func (m *memFileStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

type mockSender struct {
	mu    sync.Mutex
	sent  map[string][]string
	fail  error
	calls int
}

func (m *mockSender) SendMessage(ctx context.Context, openID string, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return m.fail
	}
	if m.sent == nil {
		m.sent = make(map[string][]string)
	}
	m.sent[openID] = append(m.sent[openID], content)
	return nil
}

func (m *mockSender) SendCardMessage(ctx context.Context, openID string, cardContent interface{}) error {
	return nil
}

// Fixture

type fixture struct {
	store      *memstore.Store
	clock      *memstore.FixedClock
	dispatcher *mockDispatcher
	activity   *mockActivity
	storage    *memFileStorage
	logger     *mockLogger
	caps       *RoleCapabilityChecker

	regionID  int64
	heiID     int64
	otherHEI  int64
	programID int64

	hei   entity.Actor
	rc    entity.Actor
	acct  entity.Actor
	admin entity.Actor

	liquidations LiquidationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	refs := store.References()

	region := &entity.Region{Code: "R7", Name: "Central Visayas"}
	require.NoError(t, refs.SaveRegion(ctx, region))
	hei := &entity.HEI{ExternalID: "HEI-07-001", Name: "Cebu Polytechnic", RegionID: region.ID}
	require.NoError(t, refs.SaveHEI(ctx, hei))
	other := &entity.HEI{ExternalID: "HEI-07-002", Name: "Bohol Institute", RegionID: region.ID}
	require.NoError(t, refs.SaveHEI(ctx, other))
	program := &entity.Program{Code: "tdp-tes", Name: "Tertiary Education Subsidy"}
	require.NoError(t, refs.SaveProgram(ctx, program))
	require.NoError(t, refs.SaveAcademicYear(ctx, &entity.AcademicYear{Label: "2023-2024"}))

	f := &fixture{
		store:      store,
		clock:      memstore.NewFixedClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
		dispatcher: &mockDispatcher{},
		activity:   &mockActivity{},
		storage:    newMemFileStorage(),
		logger:     &mockLogger{},
		caps:       NewRoleCapabilityChecker(DefaultRoleCapabilities()),
		regionID:   region.ID,
		heiID:      hei.ID,
		otherHEI:   other.ID,
		programID:  program.ID,
		hei:        entity.Actor{ID: "u-hei", Name: "Hana Reyes", Roles: []string{entity.RoleHEI}, HEIID: &hei.ID},
		rc:         entity.Actor{ID: "u-rc", Name: "Rico Santos", Roles: []string{entity.RoleRegionalCoordinator}, RegionID: &region.ID},
		acct:       entity.Actor{ID: "u-acct", Name: "Ana Cruz", Roles: []string{entity.RoleAccountant}},
		admin:      entity.Actor{ID: "u-admin", Name: "Admin", Roles: []string{entity.RoleAdmin}},
	}

	f.liquidations = NewLiquidationService(
		LiquidationRepositories{
			Liquidations:  store.Liquidations(),
			Financials:    store.Financials(),
			Reviews:       store.Reviews(),
			Transmittals:  store.Transmittals(),
			Compliances:   store.Compliances(),
			Beneficiaries: store.Beneficiaries(),
			Documents:     store.Documents(),
		},
		store.Lookup(),
		f.caps,
		store,
		lock.NewLocalLocker(),
		f.clock,
		f.logger,
		WithFileStorage(f.storage),
		WithEventDispatcher(f.dispatcher),
		WithActivity(f.activity),
	)

	return f
}

func (f *fixture) input() CreateLiquidationInput {
	return CreateLiquidationInput{
		HEIExternalID:    "HEI-07-001",
		ProgramID:        f.programID,
		AcademicYear:     "2023-2024",
		Semester:         "2nd Semester",
		AmountReceived:   mustDecimal("150000.00"),
		NumberOfGrantees: 30,
		FundSource:       "GAA 2024",
	}
}

func (f *fixture) create(t *testing.T) *entity.Liquidation {
	t.Helper()
	l, err := f.liquidations.CreateLiquidation(context.Background(), f.hei, f.input())
	require.NoError(t, err)
	return l
}

// setStatus moves a liquidation directly, bypassing the workflow
func (f *fixture) setStatus(t *testing.T, id string, status domainwf.State) {
	t.Helper()
	ctx := context.Background()
	l, err := f.store.Liquidations().GetByID(ctx, id)
	require.NoError(t, err)
	l.Status = status
	require.NoError(t, f.store.Liquidations().Update(ctx, l))
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
