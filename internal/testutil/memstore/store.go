// Package memstore is an in-memory implementation of the repository ports for tests.
// Transactions are serialized and roll back by restoring a snapshot.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

type txKey struct{}

type data struct {
	liquidations  map[string]entity.Liquidation
	financials    map[string]entity.Financial
	reviews       []entity.Review
	transmittals  []entity.Transmittal
	locations     []entity.TransmittalLocation
	compliances   []entity.Compliance
	beneficiaries []entity.Beneficiary
	documents     []entity.Document
	notifications []entity.Notification
	activity      []entity.ActivityLog
	users         map[string]entity.User

	regions      map[int64]entity.Region
	heis         map[int64]entity.HEI
	programs     map[int64]entity.Program
	years        map[int64]entity.AcademicYear
	semesters    map[int64]entity.Semester
	statuses     map[int64]entity.ComplianceStatus
	requirements map[int64]entity.DocumentRequirement

	nextID int64
}

func newData() data {
	return data{
		liquidations: make(map[string]entity.Liquidation),
		financials:   make(map[string]entity.Financial),
		users:        make(map[string]entity.User),
		regions:      make(map[int64]entity.Region),
		heis:         make(map[int64]entity.HEI),
		programs:     make(map[int64]entity.Program),
		years:        make(map[int64]entity.AcademicYear),
		semesters:    make(map[int64]entity.Semester),
		statuses:     make(map[int64]entity.ComplianceStatus),
		requirements: make(map[int64]entity.DocumentRequirement),
	}
}

func (d data) clone() data {
	c := d
	c.liquidations = cloneMap(d.liquidations)
	c.financials = cloneMap(d.financials)
	c.users = cloneMap(d.users)
	c.regions = cloneMap(d.regions)
	c.heis = cloneMap(d.heis)
	c.programs = cloneMap(d.programs)
	c.years = cloneMap(d.years)
	c.semesters = cloneMap(d.semesters)
	c.statuses = cloneMap(d.statuses)
	c.requirements = cloneMap(d.requirements)
	c.reviews = append([]entity.Review(nil), d.reviews...)
	c.transmittals = append([]entity.Transmittal(nil), d.transmittals...)
	c.locations = append([]entity.TransmittalLocation(nil), d.locations...)
	c.compliances = append([]entity.Compliance(nil), d.compliances...)
	c.beneficiaries = append([]entity.Beneficiary(nil), d.beneficiaries...)
	c.documents = append([]entity.Document(nil), d.documents...)
	c.notifications = append([]entity.Notification(nil), d.notifications...)
	c.activity = append([]entity.ActivityLog(nil), d.activity...)
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Store holds every table in memory
type Store struct {
	txMu sync.Mutex

	mu       sync.Mutex
	d        data
	failures map[string]error
	commits  int
}

// New creates an empty store seeded with the compliance statuses and semesters
func New() *Store {
	s := &Store{
		d:        newData(),
		failures: make(map[string]error),
	}
	for _, st := range []entity.ComplianceStatus{
		{Code: entity.ComplianceStatusPending, Name: "Pending"},
		{Code: entity.ComplianceStatusComplied, Name: "Complied"},
	} {
		st.ID = s.id()
		s.d.statuses[st.ID] = st
	}
	for _, sem := range []entity.Semester{
		{Code: entity.SemesterFirst, Name: "First Semester"},
		{Code: entity.SemesterSecond, Name: "Second Semester"},
		{Code: entity.SemesterSummer, Name: "Summer"},
	} {
		sem.ID = s.id()
		s.d.semesters[sem.ID] = sem
	}
	return s
}

// id allocates the next surrogate key; callers hold mu
func (s *Store) id() int64 {
	s.d.nextID++
	return s.d.nextID
}

// Fail makes the named operation (for example "reviews.create") return err
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

// failure returns the injected error for op; callers hold mu
func (s *Store) failure(op string) error {
	return s.failures[op]
}

// Commits returns how many top-level transactions committed
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// WithTransaction implements port.TransactionManager
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.d.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.d = snapshot
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

// Liquidations returns the liquidation repository
func (s *Store) Liquidations() port.LiquidationRepository { return liquidationRepo{s} }

// Financials returns the financial repository
func (s *Store) Financials() port.FinancialRepository { return financialRepo{s} }

// Reviews returns the review repository
func (s *Store) Reviews() port.ReviewRepository { return reviewRepo{s} }

// Transmittals returns the transmittal repository
func (s *Store) Transmittals() port.TransmittalRepository { return transmittalRepo{s} }

// Compliances returns the compliance repository
func (s *Store) Compliances() port.ComplianceRepository { return complianceRepo{s} }

// Beneficiaries returns the beneficiary repository
func (s *Store) Beneficiaries() port.BeneficiaryRepository { return beneficiaryRepo{s} }

// Documents returns the document repository
func (s *Store) Documents() port.DocumentRepository { return documentRepo{s} }

// References returns the reference data repository
func (s *Store) References() port.ReferenceRepository { return referenceRepo{s} }

// Users returns the user repository
func (s *Store) Users() port.UserRepository { return userRepo{s} }

// Notifications returns the notification repository
func (s *Store) Notifications() port.NotificationRepository { return notificationRepo{s} }

// Activity returns the activity log repository
func (s *Store) Activity() port.ActivityLogRepository { return activityRepo{s} }

// Lookup returns an uncached port.ReferenceLookup over the reference tables
func (s *Store) Lookup() port.CachedReferenceLookup { return lookup{s} }

// FixedClock is a port.Clock that always returns the same instant
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock creates a clock frozen at t
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

// Now implements port.Clock
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type liquidationRepo struct{ s *Store }

func (r liquidationRepo) Create(ctx context.Context, l *entity.Liquidation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("liquidations.create"); err != nil {
		return err
	}
	if _, _, err := entity.ParseControlNumberSequence(l.ControlNo); err != nil {
		return err
	}
	for _, existing := range r.s.d.liquidations {
		if existing.ControlNo == l.ControlNo {
			return apperr.Conflict(fmt.Sprintf("control number %s already issued", l.ControlNo), nil)
		}
	}
	row := *l
	row.Financial = nil
	r.s.d.liquidations[l.ID] = row
	return nil
}

func (r liquidationRepo) GetByID(ctx context.Context, id string) (*entity.Liquidation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.d.liquidations[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r liquidationRepo) Update(ctx context.Context, l *entity.Liquidation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("liquidations.update"); err != nil {
		return err
	}
	existing, ok := r.s.d.liquidations[l.ID]
	if !ok {
		return fmt.Errorf("liquidation %s not found for update", l.ID)
	}
	row := *l
	row.Financial = nil
	row.ControlNo = existing.ControlNo
	row.CreatedBy = existing.CreatedBy
	row.CreatedAt = existing.CreatedAt
	r.s.d.liquidations[l.ID] = row
	return nil
}

func (r liquidationRepo) List(ctx context.Context, filter entity.LiquidationFilter) ([]*entity.Liquidation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.Liquidation
	for _, row := range r.s.d.liquidations {
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		if filter.HEIID != 0 && row.HEIID != filter.HEIID {
			continue
		}
		if !filter.IncludeDeleted && row.DeletedAt != nil {
			continue
		}
		row := row
		out = append(out, &row)
	}
	sortLiquidations(out)

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r liquidationRepo) MaxControlSequence(ctx context.Context, year int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	highest := 0
	for _, row := range r.s.d.liquidations {
		y, seq, err := entity.ParseControlNumberSequence(row.ControlNo)
		if err == nil && y == year && seq > highest {
			highest = seq
		}
	}
	return highest, nil
}

type financialRepo struct{ s *Store }

func (r financialRepo) Create(ctx context.Context, f *entity.Financial) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("financials.create"); err != nil {
		return err
	}
	if _, ok := r.s.d.financials[f.LiquidationID]; ok {
		return apperr.Conflict("financial already exists for liquidation "+f.LiquidationID, nil)
	}
	f.ID = r.s.id()
	r.s.d.financials[f.LiquidationID] = *f
	return nil
}

func (r financialRepo) GetByLiquidationID(ctx context.Context, liquidationID string) (*entity.Financial, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.d.financials[liquidationID]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r financialRepo) Update(ctx context.Context, f *entity.Financial) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("financials.update"); err != nil {
		return err
	}
	if _, ok := r.s.d.financials[f.LiquidationID]; !ok {
		return fmt.Errorf("financial for %s not found for update", f.LiquidationID)
	}
	r.s.d.financials[f.LiquidationID] = *f
	return nil
}

type reviewRepo struct{ s *Store }

func (r reviewRepo) Create(ctx context.Context, review *entity.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("reviews.create"); err != nil {
		return err
	}
	review.ID = r.s.id()
	r.s.d.reviews = append(r.s.d.reviews, *review)
	return nil
}

func (r reviewRepo) ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Review, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Review
	for _, row := range r.s.d.reviews {
		if row.LiquidationID == liquidationID {
			row := row
			out = append(out, &row)
		}
	}
	sortReviews(out)
	return out, nil
}

func (r reviewRepo) CountByLiquidationID(ctx context.Context, liquidationID string) (int, error) {
	rows, _ := r.ListByLiquidationID(ctx, liquidationID)
	return len(rows), nil
}

type transmittalRepo struct{ s *Store }

func (r transmittalRepo) Create(ctx context.Context, t *entity.Transmittal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("transmittals.create"); err != nil {
		return err
	}
	for _, existing := range r.s.d.transmittals {
		if existing.TransmittalReferenceNo == t.TransmittalReferenceNo {
			return apperr.Conflict(fmt.Sprintf("transmittal reference %s already used", t.TransmittalReferenceNo), nil)
		}
	}
	t.ID = r.s.id()
	row := *t
	row.LocationHistory = nil
	r.s.d.transmittals = append(r.s.d.transmittals, row)
	return nil
}

func (r transmittalRepo) AddLocation(ctx context.Context, loc *entity.TransmittalLocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("transmittals.add_location"); err != nil {
		return err
	}
	loc.ID = r.s.id()
	r.s.d.locations = append(r.s.d.locations, *loc)
	return nil
}

func (r transmittalRepo) GetActiveByLiquidationID(ctx context.Context, liquidationID string) (*entity.Transmittal, error) {
	all, _ := r.ListByLiquidationID(ctx, liquidationID)
	if len(all) == 0 {
		return nil, nil
	}
	return all[len(all)-1], nil
}

func (r transmittalRepo) ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Transmittal, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Transmittal
	for _, row := range r.s.d.transmittals {
		if row.LiquidationID != liquidationID {
			continue
		}
		row := row
		for _, loc := range r.s.d.locations {
			if loc.TransmittalID == row.ID {
				row.LocationHistory = append(row.LocationHistory, loc)
			}
		}
		out = append(out, &row)
	}
	return out, nil
}

type complianceRepo struct{ s *Store }

func (r complianceRepo) Create(ctx context.Context, c *entity.Compliance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("compliances.create"); err != nil {
		return err
	}
	c.ID = r.s.id()
	r.s.d.compliances = append(r.s.d.compliances, *c)
	return nil
}

func (r complianceRepo) GetActiveByLiquidationID(ctx context.Context, liquidationID string) (*entity.Compliance, error) {
	all, _ := r.ListByLiquidationID(ctx, liquidationID)
	if len(all) == 0 {
		return nil, nil
	}
	return all[len(all)-1], nil
}

func (r complianceRepo) ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Compliance, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Compliance
	for _, row := range r.s.d.compliances {
		if row.LiquidationID == liquidationID {
			row := row
			out = append(out, &row)
		}
	}
	return out, nil
}

type beneficiaryRepo struct{ s *Store }

func (r beneficiaryRepo) Create(ctx context.Context, b *entity.Beneficiary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("beneficiaries.create"); err != nil {
		return err
	}
	b.ID = r.s.id()
	r.s.d.beneficiaries = append(r.s.d.beneficiaries, *b)
	return nil
}

func (r beneficiaryRepo) ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Beneficiary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Beneficiary
	for _, row := range r.s.d.beneficiaries {
		if row.LiquidationID == liquidationID {
			row := row
			out = append(out, &row)
		}
	}
	return out, nil
}

func (r beneficiaryRepo) CountByLiquidationID(ctx context.Context, liquidationID string) (int, error) {
	rows, _ := r.ListByLiquidationID(ctx, liquidationID)
	return len(rows), nil
}

type documentRepo struct{ s *Store }

func (r documentRepo) Create(ctx context.Context, d *entity.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("documents.create"); err != nil {
		return err
	}
	d.ID = r.s.id()
	r.s.d.documents = append(r.s.d.documents, *d)
	return nil
}

func (r documentRepo) ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Document
	for _, row := range r.s.d.documents {
		if row.LiquidationID == liquidationID {
			row := row
			out = append(out, &row)
		}
	}
	return out, nil
}

func (r documentRepo) CountByLiquidationID(ctx context.Context, liquidationID string) (int, error) {
	rows, _ := r.ListByLiquidationID(ctx, liquidationID)
	return len(rows), nil
}

type userRepo struct{ s *Store }

func (r userRepo) Save(ctx context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.d.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userRepo) ListByHEI(ctx context.Context, heiID int64) ([]*entity.User, error) {
	return r.list(func(u entity.User) bool { return u.HEIID != nil && *u.HEIID == heiID })
}

func (r userRepo) ListByRole(ctx context.Context, role string, regionID *int64) ([]*entity.User, error) {
	return r.list(func(u entity.User) bool {
		if u.Role != role {
			return false
		}
		return regionID == nil || (u.RegionID != nil && *u.RegionID == *regionID)
	})
}

func (r userRepo) list(match func(entity.User) bool) ([]*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.User
	for _, u := range r.s.d.users {
		if match(u) {
			u := u
			out = append(out, &u)
		}
	}
	sortUsers(out)
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("notifications.create"); err != nil {
		return err
	}
	n.ID = r.s.id()
	r.s.d.notifications = append(r.s.d.notifications, *n)
	return nil
}

func (r notificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Notification
	for i := len(r.s.d.notifications) - 1; i >= 0; i-- {
		n := r.s.d.notifications[i]
		if n.UserID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		out = append(out, &n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id int64, userID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, n := range r.s.d.notifications {
		if n.ID == id && n.UserID == userID {
			if n.ReadAt == nil {
				r.s.d.notifications[i].ReadAt = &at
			}
			return true, nil
		}
	}
	return false, nil
}

func (r notificationRepo) MarkPushed(ctx context.Context, id int64, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, n := range r.s.d.notifications {
		if n.ID == id {
			r.s.d.notifications[i].PushedAt = &at
			return nil
		}
	}
	return fmt.Errorf("notification %d not found", id)
}

func (r notificationRepo) RecordPushFailure(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, n := range r.s.d.notifications {
		if n.ID == id {
			r.s.d.notifications[i].PushAttempts++
			return nil
		}
	}
	return fmt.Errorf("notification %d not found", id)
}

func (r notificationRepo) ListUnpushed(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("notifications.list_unpushed"); err != nil {
		return nil, err
	}
	var out []*entity.Notification
	for _, n := range r.s.d.notifications {
		if n.PushedAt != nil || n.PushAttempts >= maxAttempts || r.s.d.users[n.UserID].LarkOpenID == "" {
			continue
		}
		n := n
		out = append(out, &n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type activityRepo struct{ s *Store }

func (r activityRepo) Create(ctx context.Context, entry *entity.ActivityLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("activity.create"); err != nil {
		return err
	}
	entry.ID = r.s.id()
	r.s.d.activity = append(r.s.d.activity, *entry)
	return nil
}

func (r activityRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.ActivityLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ActivityLog
	for _, row := range r.s.d.activity {
		if row.EntityType == entityType && row.EntityID == entityID {
			row := row
			out = append(out, &row)
		}
	}
	return out, nil
}
