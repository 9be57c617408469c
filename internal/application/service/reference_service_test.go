package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

// invalidationRecorder counts invalidations per table
type invalidationRecorder struct {
	port.CachedReferenceLookup
	counts map[entity.ReferenceKind]int
}

func (r *invalidationRecorder) Invalidate(kind entity.ReferenceKind) {
	if r.counts == nil {
		r.counts = make(map[entity.ReferenceKind]int)
	}
	r.counts[kind]++
	r.CachedReferenceLookup.Invalidate(kind)
}

func TestReferenceService_SaveAndInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lookup := &invalidationRecorder{CachedReferenceLookup: f.store.Lookup()}
	svc := NewReferenceService(f.store.References(), lookup, f.caps, f.activity, f.logger)

	program := &entity.Program{Code: " cmsp ", Name: "Merit Scholarship"}
	require.NoError(t, svc.SaveProgram(ctx, f.admin, program))
	assert.NotZero(t, program.ID)
	assert.Equal(t, "cmsp", program.Code)
	assert.Equal(t, 1, lookup.counts[entity.ReferenceProgram])

	program.Name = "CHED Merit Scholarship"
	require.NoError(t, svc.SaveProgram(ctx, f.admin, program))
	assert.Equal(t, 2, lookup.counts[entity.ReferenceProgram])

	stored, err := f.store.References().GetProgramByID(ctx, program.ID)
	require.NoError(t, err)
	assert.Equal(t, "CHED Merit Scholarship", stored.Name)

	assert.Equal(t, []string{"reference:create", "reference:update"}, f.activity.actions())
}

func TestReferenceService_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewReferenceService(f.store.References(), f.store.Lookup(), f.caps, nil, f.logger)

	err := svc.SaveRegion(ctx, f.hei, &entity.Region{Code: "R9", Name: "Zamboanga"})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	err = svc.SaveRegion(ctx, f.admin, &entity.Region{Code: "R9"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	err = svc.SaveProgram(ctx, f.admin, &entity.Program{Code: "--", Name: "Dashes"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	err = svc.SaveHEI(ctx, f.admin, &entity.HEI{ExternalID: "HEI-X", Name: "Nowhere", RegionID: 9999})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = svc.SaveHEI(ctx, f.admin, &entity.HEI{ExternalID: "HEI-07-001", Name: "Duplicate", RegionID: f.regionID})
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestReferenceService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewReferenceService(f.store.References(), f.store.Lookup(), f.caps, nil, f.logger)

	err := svc.Delete(ctx, f.admin, entity.ReferenceHEI, 9999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	f.create(t)
	err = svc.Delete(ctx, f.admin, entity.ReferenceHEI, f.heiID)
	assert.True(t, errors.Is(err, apperr.ErrConflict), "HEI still has liquidations")

	require.NoError(t, svc.Delete(ctx, f.admin, entity.ReferenceHEI, f.otherHEI))
	gone, err := f.store.References().GetHEIByID(ctx, f.otherHEI)
	require.NoError(t, err)
	assert.Nil(t, gone)

	err = svc.Delete(ctx, f.rc, entity.ReferenceHEI, f.heiID)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
}
