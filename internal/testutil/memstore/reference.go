package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

type referenceRepo struct{ s *Store }

func (r referenceRepo) GetRegionByID(ctx context.Context, id int64) (*entity.Region, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return find(r.s.d.regions, func(v entity.Region) bool { return v.ID == id }), nil
}

func (r referenceRepo) GetHEIByID(ctx context.Context, id int64) (*entity.HEI, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return find(r.s.d.heis, func(v entity.HEI) bool { return v.ID == id }), nil
}

func (r referenceRepo) GetHEIByExternalID(ctx context.Context, externalID string) (*entity.HEI, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return find(r.s.d.heis, func(v entity.HEI) bool { return v.ExternalID == externalID }), nil
}

func (r referenceRepo) GetProgramByID(ctx context.Context, id int64) (*entity.Program, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return find(r.s.d.programs, func(v entity.Program) bool { return v.ID == id }), nil
}

func (r referenceRepo) GetAcademicYearByLabel(ctx context.Context, label string) (*entity.AcademicYear, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return find(r.s.d.years, func(v entity.AcademicYear) bool { return v.Label == label }), nil
}

func (r referenceRepo) GetSemesterByCode(ctx context.Context, code string) (*entity.Semester, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return find(r.s.d.semesters, func(v entity.Semester) bool { return v.Code == code }), nil
}

func (r referenceRepo) GetComplianceStatusByCode(ctx context.Context, code string) (*entity.ComplianceStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return find(r.s.d.statuses, func(v entity.ComplianceStatus) bool { return v.Code == code }), nil
}

func (r referenceRepo) ListDocumentRequirements(ctx context.Context, programID *int64) ([]*entity.DocumentRequirement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.DocumentRequirement
	for _, req := range r.s.d.requirements {
		if programID != nil && req.ProgramID != nil && *req.ProgramID != *programID {
			continue
		}
		req := req
		out = append(out, &req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r referenceRepo) SaveRegion(ctx context.Context, v *entity.Region) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return saveRow(r.s, r.s.d.regions, &v.ID, *v, func(row *entity.Region, id int64) { row.ID = id },
		func(o entity.Region) bool { return strings.EqualFold(o.Code, v.Code) }, entity.ReferenceRegion)
}

func (r referenceRepo) SaveHEI(ctx context.Context, v *entity.HEI) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return saveRow(r.s, r.s.d.heis, &v.ID, *v, func(row *entity.HEI, id int64) { row.ID = id },
		func(o entity.HEI) bool { return o.ExternalID == v.ExternalID }, entity.ReferenceHEI)
}

func (r referenceRepo) SaveProgram(ctx context.Context, v *entity.Program) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return saveRow(r.s, r.s.d.programs, &v.ID, *v, func(row *entity.Program, id int64) { row.ID = id },
		func(o entity.Program) bool { return o.Code == v.Code }, entity.ReferenceProgram)
}

func (r referenceRepo) SaveAcademicYear(ctx context.Context, v *entity.AcademicYear) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return saveRow(r.s, r.s.d.years, &v.ID, *v, func(row *entity.AcademicYear, id int64) { row.ID = id },
		func(o entity.AcademicYear) bool { return o.Label == v.Label }, entity.ReferenceAcademicYear)
}

func (r referenceRepo) SaveSemester(ctx context.Context, v *entity.Semester) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return saveRow(r.s, r.s.d.semesters, &v.ID, *v, func(row *entity.Semester, id int64) { row.ID = id },
		func(o entity.Semester) bool { return o.Code == v.Code }, entity.ReferenceSemester)
}

func (r referenceRepo) SaveComplianceStatus(ctx context.Context, v *entity.ComplianceStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return saveRow(r.s, r.s.d.statuses, &v.ID, *v, func(row *entity.ComplianceStatus, id int64) { row.ID = id },
		func(o entity.ComplianceStatus) bool { return o.Code == v.Code }, entity.ReferenceComplianceStatus)
}

func (r referenceRepo) SaveDocumentRequirement(ctx context.Context, v *entity.DocumentRequirement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return saveRow(r.s, r.s.d.requirements, &v.ID, *v, func(row *entity.DocumentRequirement, id int64) { row.ID = id },
		func(entity.DocumentRequirement) bool { return false }, entity.ReferenceDocumentRequirement)
}

func (r referenceRepo) Delete(ctx context.Context, kind entity.ReferenceKind, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.referenced(kind, id) {
		return false, apperr.Conflict(fmt.Sprintf("%s %d is still referenced", kind, id), nil)
	}

	switch kind {
	case entity.ReferenceRegion:
		return deleteKey(r.s.d.regions, id), nil
	case entity.ReferenceHEI:
		return deleteKey(r.s.d.heis, id), nil
	case entity.ReferenceProgram:
		return deleteKey(r.s.d.programs, id), nil
	case entity.ReferenceAcademicYear:
		return deleteKey(r.s.d.years, id), nil
	case entity.ReferenceSemester:
		return deleteKey(r.s.d.semesters, id), nil
	case entity.ReferenceComplianceStatus:
		return deleteKey(r.s.d.statuses, id), nil
	case entity.ReferenceDocumentRequirement:
		return deleteKey(r.s.d.requirements, id), nil
	}
	return false, fmt.Errorf("unknown reference kind %q", kind)
}

// referenced mirrors the foreign keys liquidations hold; callers hold mu
func (r referenceRepo) referenced(kind entity.ReferenceKind, id int64) bool {
	for _, l := range r.s.d.liquidations {
		switch {
		case kind == entity.ReferenceHEI && l.HEIID == id,
			kind == entity.ReferenceProgram && l.ProgramID == id,
			kind == entity.ReferenceAcademicYear && l.AcademicYearID == id,
			kind == entity.ReferenceSemester && l.SemesterID == id:
			return true
		}
	}
	return false
}

func find[V any](m map[int64]V, match func(V) bool) *V {
	for _, v := range m {
		if match(v) {
			v := v
			return &v
		}
	}
	return nil
}

func deleteKey[V any](m map[int64]V, id int64) bool {
	if _, ok := m[id]; !ok {
		return false
	}
	delete(m, id)
	return true
}

// saveRow inserts when *id is zero, updates otherwise, and rejects a duplicate
// natural key held by a different row; callers hold mu
func saveRow[V any](s *Store, m map[int64]V, id *int64, row V, setID func(*V, int64), sameKey func(V) bool, kind entity.ReferenceKind) error {
	for existingID, existing := range m {
		if existingID != *id && sameKey(existing) {
			return apperr.Conflict(fmt.Sprintf("%s already exists", kind), nil)
		}
	}

	if *id == 0 {
		*id = s.id()
	} else if _, ok := m[*id]; !ok {
		return fmt.Errorf("%s %d not found for update", kind, *id)
	}
	setID(&row, *id)
	m[*id] = row
	return nil
}

// lookup implements port.CachedReferenceLookup without caching
type lookup struct{ s *Store }

func (l lookup) HEIByID(ctx context.Context, id int64) (*entity.HEI, error) {
	return referenceRepo(l).GetHEIByID(ctx, id)
}

func (l lookup) HEIByExternalID(ctx context.Context, externalID string) (*entity.HEI, error) {
	return referenceRepo(l).GetHEIByExternalID(ctx, externalID)
}

func (l lookup) ProgramByID(ctx context.Context, id int64) (*entity.Program, error) {
	return referenceRepo(l).GetProgramByID(ctx, id)
}

func (l lookup) AcademicYearByLabel(ctx context.Context, label string) (*entity.AcademicYear, error) {
	return referenceRepo(l).GetAcademicYearByLabel(ctx, strings.TrimSpace(label))
}

func (l lookup) SemesterByLabel(ctx context.Context, label string) (*entity.Semester, error) {
	return referenceRepo(l).GetSemesterByCode(ctx, entity.NormalizeSemesterLabel(label))
}

func (l lookup) ComplianceStatusByCode(ctx context.Context, code string) (*entity.ComplianceStatus, error) {
	return referenceRepo(l).GetComplianceStatusByCode(ctx, code)
}

func (l lookup) Invalidate(entity.ReferenceKind) {}

func sortLiquidations(out []*entity.Liquidation) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ControlNo > out[j].ControlNo
	})
}

func sortReviews(out []*entity.Review) {
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PerformedAt.Equal(out[j].PerformedAt) {
			return out[i].PerformedAt.Before(out[j].PerformedAt)
		}
		return out[i].ID < out[j].ID
	})
}

func sortUsers(out []*entity.User) {
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
}

// Verify interface compliance
var (
	_ port.ReferenceRepository   = referenceRepo{}
	_ port.CachedReferenceLookup = lookup{}
	_ port.TransactionManager    = (*Store)(nil)
)
