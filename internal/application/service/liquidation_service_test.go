package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/domain/event"
	domainwf "github.com/garyjia/hei-liquidation/internal/domain/workflow"
)

func TestCreateLiquidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	l, err := f.liquidations.CreateLiquidation(ctx, f.hei, f.input())
	require.NoError(t, err)

	assert.Equal(t, "TDPTES-2024-00001", l.ControlNo)
	assert.Equal(t, domainwf.StateDraft, l.Status)
	assert.Equal(t, entity.LiquidationStatusUnliquidated, l.LiquidationStatus)
	assert.Equal(t, entity.DocumentStatusNone, l.DocumentStatus)
	assert.Equal(t, f.hei.ID, l.CreatedBy)
	assert.Equal(t, f.heiID, l.HEIID)
	assert.Nil(t, l.DateSubmitted)

	second, err := f.store.References().GetSemesterByCode(ctx, entity.SemesterSecond)
	require.NoError(t, err)
	assert.Equal(t, second.ID, l.SemesterID)

	require.NotNil(t, l.Financial)
	assert.True(t, l.Financial.AmountReceived.Equal(mustDecimal("150000")))
	assert.True(t, l.Financial.AmountDisbursed.Equal(mustDecimal("150000")), "disbursed mirrors received")
	assert.Equal(t, 30, l.Financial.NumberOfGrantees)

	stored, err := f.liquidations.GetLiquidation(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ControlNo, stored.ControlNo)
	require.NotNil(t, stored.Financial)

	evt := f.dispatcher.last()
	require.NotNil(t, evt)
	assert.Equal(t, event.TypeLiquidationCreated, evt.Type)
	assert.Equal(t, l.ID, evt.SubjectID)
	assert.Equal(t, f.heiID, evt.GetPayloadInt("hei_id"))
	assert.Equal(t, []string{"liquidation:create"}, f.activity.actions())
}

func TestCreateLiquidation_ExplicitDisbursed(t *testing.T) {
	f := newFixture(t)
	in := f.input()
	disbursed := mustDecimal("120000")
	in.AmountDisbursed = &disbursed

	l, err := f.liquidations.CreateLiquidation(context.Background(), f.hei, in)
	require.NoError(t, err)
	assert.True(t, l.Financial.AmountDisbursed.Equal(disbursed))
}

func TestCreateLiquidation_SequentialControlNumbers(t *testing.T) {
	f := newFixture(t)

	first := f.create(t)
	second := f.create(t)
	f.clock.Advance(365 * 24 * time.Hour)
	nextYear := f.create(t)

	assert.Equal(t, "TDPTES-2024-00001", first.ControlNo)
	assert.Equal(t, "TDPTES-2024-00002", second.ControlNo)
	assert.Equal(t, "TDPTES-2025-00001", nextYear.ControlNo)
}

func TestCreateLiquidation_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 20

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := f.liquidations.CreateLiquidation(ctx, f.hei, f.input())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[l.ControlNo] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, numbers, n)
	for i := 1; i <= n; i++ {
		assert.True(t, numbers[fmt.Sprintf("TDPTES-2024-%05d", i)], "missing sequence %d", i)
	}
}

func TestCreateLiquidation_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		actor    func(f *fixture) entity.Actor
		mutate   func(f *fixture, in *CreateLiquidationInput)
		wantKind apperr.Kind
		field    string
	}{
		{
			name:     "missing HEI",
			mutate:   func(f *fixture, in *CreateLiquidationInput) { in.HEIExternalID = "  " },
			wantKind: apperr.KindValidation,
			field:    "HEIExternalID",
		},
		{
			name:     "missing academic year",
			mutate:   func(f *fixture, in *CreateLiquidationInput) { in.AcademicYear = "" },
			wantKind: apperr.KindValidation,
			field:    "AcademicYear",
		},
		{
			name:     "negative amount",
			mutate:   func(f *fixture, in *CreateLiquidationInput) { in.AmountReceived = mustDecimal("-1") },
			wantKind: apperr.KindValidation,
			field:    "AmountReceived",
		},
		{
			name:     "unknown HEI",
			mutate:   func(f *fixture, in *CreateLiquidationInput) { in.HEIExternalID = "HEI-99" },
			wantKind: apperr.KindNotFound,
		},
		{
			name:     "unknown program",
			mutate:   func(f *fixture, in *CreateLiquidationInput) { in.ProgramID = 9999 },
			wantKind: apperr.KindNotFound,
		},
		{
			name:     "unknown academic year",
			mutate:   func(f *fixture, in *CreateLiquidationInput) { in.AcademicYear = "1999-2000" },
			wantKind: apperr.KindNotFound,
		},
		{
			name:     "regional coordinator cannot create",
			actor:    func(f *fixture) entity.Actor { return f.rc },
			wantKind: apperr.KindUnauthorized,
		},
		{
			name: "HEI user of another institution",
			actor: func(f *fixture) entity.Actor {
				a := f.hei
				a.HEIID = &f.otherHEI
				return a
			},
			wantKind: apperr.KindUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := f.input()
			if tt.mutate != nil {
				tt.mutate(f, &in)
			}
			actor := f.hei
			if tt.actor != nil {
				actor = tt.actor(f)
			}

			l, err := f.liquidations.CreateLiquidation(context.Background(), actor, in)
			require.Error(t, err)
			assert.Nil(t, l)
			assert.Equal(t, tt.wantKind, apperr.KindOf(err))
			if tt.field != "" {
				var appErr *apperr.Error
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, tt.field, appErr.Field)
			}

			all, err := f.store.Liquidations().List(context.Background(), entity.LiquidationFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestCreateLiquidation_AdminOnBehalfOfHEI(t *testing.T) {
	f := newFixture(t)
	l, err := f.liquidations.CreateLiquidation(context.Background(), f.admin, f.input())
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, l.CreatedBy)
}

func TestCreateLiquidation_UnknownSemesterLabelFallsBackToFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.input()
	in.Semester = "whole year"

	l, err := f.liquidations.CreateLiquidation(ctx, f.hei, in)
	require.NoError(t, err)

	first, err := f.store.References().GetSemesterByCode(ctx, entity.SemesterFirst)
	require.NoError(t, err)
	assert.Equal(t, first.ID, l.SemesterID)
}

func TestUpsertFinancial_DerivesLiquidationStatus(t *testing.T) {
	tests := []struct {
		name       string
		liquidated string
		refunded   string
		want       entity.LiquidationStatus
	}{
		{"nothing settled", "0", "0", entity.LiquidationStatusUnliquidated},
		{"partly liquidated", "60000", "0", entity.LiquidationStatusPartial},
		{"liquidated plus refund", "140000", "10000", entity.LiquidationStatusFull},
		{"overliquidated is accepted", "160000", "0", entity.LiquidationStatusFull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			l := f.create(t)

			liquidated := mustDecimal(tt.liquidated)
			refunded := mustDecimal(tt.refunded)
			financial, err := f.liquidations.UpsertFinancial(ctx, l.ID, f.hei, entity.FinancialFields{
				AmountLiquidated: &liquidated,
				AmountRefunded:   &refunded,
			})
			require.NoError(t, err)
			assert.True(t, financial.AmountReceived.Equal(mustDecimal("150000")))

			got, err := f.liquidations.GetLiquidation(ctx, l.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.LiquidationStatus)
		})
	}
}

func TestUpsertFinancial_Access(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t)
	amount := mustDecimal("1000")

	_, err := f.liquidations.UpsertFinancial(ctx, l.ID, f.acct, entity.FinancialFields{AmountLiquidated: &amount})
	assert.NoError(t, err, "accounting may correct amounts")

	_, err = f.liquidations.UpsertFinancial(ctx, l.ID, f.rc, entity.FinancialFields{AmountLiquidated: &amount})
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	negative := mustDecimal("-5")
	_, err = f.liquidations.UpsertFinancial(ctx, l.ID, f.hei, entity.FinancialFields{AmountRefunded: &negative})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.liquidations.UpsertFinancial(ctx, "missing", f.hei, entity.FinancialFields{AmountLiquidated: &amount})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestAttachments_DeriveDocumentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t)

	_, err := f.liquidations.AddBeneficiary(ctx, l.ID, f.hei, entity.Beneficiary{
		StudentNo: "2021-0001", LastName: "Dela Cruz", FirstName: "Juan", Amount: mustDecimal("5000"),
	})
	require.NoError(t, err)

	got, err := f.liquidations.GetLiquidation(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusPartial, got.DocumentStatus)

	doc, err := f.liquidations.AttachDocument(ctx, l.ID, f.hei, AttachDocumentInput{
		FileName:    "../../payroll.pdf",
		ContentType: "application/pdf",
		Content:     []byte("%PDF-1.7"),
	})
	require.NoError(t, err)
	assert.Equal(t, "payroll.pdf", doc.FileName)
	assert.Equal(t, int64(8), doc.SizeBytes)
	assert.True(t, strings.HasPrefix(doc.StorageKey, "liquidations/"+l.ID+"/"))
	assert.True(t, strings.HasSuffix(doc.StorageKey, "-payroll.pdf"))
	assert.True(t, f.storage.Exists(ctx, doc.StorageKey))

	got, err = f.liquidations.GetLiquidation(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusComplete, got.DocumentStatus)

	beneficiaries, err := f.liquidations.ListBeneficiaries(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, beneficiaries, 1)

	docs, err := f.liquidations.ListDocuments(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestAttachments_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t)
	valid := entity.Beneficiary{StudentNo: "2021-0002", LastName: "Santos", FirstName: "Maria"}

	_, err := f.liquidations.AddBeneficiary(ctx, l.ID, f.hei, entity.Beneficiary{LastName: "Santos", FirstName: "Maria"})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.liquidations.AddBeneficiary(ctx, l.ID, f.rc, valid)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	f.setStatus(t, l.ID, domainwf.StateForInitialReview)
	_, err = f.liquidations.AddBeneficiary(ctx, l.ID, f.hei, valid)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	f.setStatus(t, l.ID, domainwf.StateReturnedToHEI)
	_, err = f.liquidations.AddBeneficiary(ctx, l.ID, f.hei, valid)
	assert.NoError(t, err, "returned liquidations can be corrected")
}

func TestAttachDocument_FailedWriteRemovesBlob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t)
	f.store.Fail("documents.create", errors.New("disk full"))

	_, err := f.liquidations.AttachDocument(ctx, l.ID, f.hei, AttachDocumentInput{
		FileName: "receipts.pdf",
		Content:  []byte("data"),
	})
	require.Error(t, err)
	assert.Empty(t, f.storage.blobs)

	got, err := f.liquidations.GetLiquidation(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.DocumentStatusNone, got.DocumentStatus)
}

func TestSoftDeleteLiquidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.create(t)
	require.NoError(t, f.liquidations.SoftDeleteLiquidation(ctx, draft.ID, f.hei))

	_, err := f.liquidations.GetLiquidation(ctx, draft.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = f.liquidations.History(ctx, draft.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	listed, err := f.liquidations.ListLiquidations(ctx, entity.LiquidationFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	submitted := f.create(t)
	f.setStatus(t, submitted.ID, domainwf.StateForInitialReview)
	err = f.liquidations.SoftDeleteLiquidation(ctx, submitted.ID, f.hei)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	other := f.create(t)
	err = f.liquidations.SoftDeleteLiquidation(ctx, other.ID, f.rc)
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	assert.Contains(t, f.activity.actions(), "liquidation:delete")
}

func TestListLiquidations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t)
	f.clock.Advance(time.Minute)
	b := f.create(t)
	f.setStatus(t, b.ID, domainwf.StateForInitialReview)

	all, err := f.liquidations.ListLiquidations(ctx, entity.LiquidationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "newest first")
	assert.NotNil(t, all[1].Financial)

	pending, err := f.liquidations.ListLiquidations(ctx, entity.LiquidationFilter{Status: domainwf.StateDraft})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	_, err = f.liquidations.ListLiquidations(ctx, entity.LiquidationFilter{Status: domainwf.State("archived")})
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestRelocateTransmittal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t)

	_, err := f.liquidations.RelocateTransmittal(ctx, l.ID, f.acct, 4, "")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = f.liquidations.ActiveTransmittal(ctx, l.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	transmittal := &entity.Transmittal{
		LiquidationID:          l.ID,
		TransmittalReferenceNo: "TR-2024-0101",
		ReceiverName:           "Records Section",
		DocumentLocationID:     3,
		NumberOfFolders:        2,
		EndorsedBy:             f.rc.ID,
		EndorsedAt:             f.clock.Now(),
	}
	require.NoError(t, f.store.Transmittals().Create(ctx, transmittal))
	require.NoError(t, f.store.Transmittals().AddLocation(ctx, &entity.TransmittalLocation{
		TransmittalID: transmittal.ID, DocumentLocationID: 3, MovedBy: f.rc.ID, MovedAt: f.clock.Now(),
	}))

	_, err = f.liquidations.RelocateTransmittal(ctx, l.ID, f.hei, 4, "")
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	_, err = f.liquidations.RelocateTransmittal(ctx, l.ID, f.acct, 0, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	f.clock.Advance(time.Hour)
	moved, err := f.liquidations.RelocateTransmittal(ctx, l.ID, f.acct, 4, "Moved to vault")
	require.NoError(t, err)
	require.Len(t, moved.LocationHistory, 2)
	assert.Equal(t, int64(4), moved.LocationHistory[1].DocumentLocationID)
	assert.Equal(t, "Moved to vault", moved.LocationHistory[1].Remarks)

	active, err := f.liquidations.ActiveTransmittal(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, transmittal.ID, active.ID)

	evt := f.dispatcher.last()
	require.NotNil(t, evt)
	assert.Equal(t, event.TypeTransmittalRelocated, evt.Type)
	assert.Equal(t, "TR-2024-0101", evt.GetPayloadString("transmittal_reference_no"))
}

func TestActiveCompliance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t)

	_, err := f.liquidations.ActiveCompliance(ctx, l.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	for _, docs := range []string{"Payroll", "Payroll and receipts"} {
		require.NoError(t, f.store.Compliances().Create(ctx, &entity.Compliance{
			LiquidationID:          l.ID,
			DocumentsRequired:      docs,
			ComplianceStatusID:     1,
			AmountWithCompleteDocs: decimal.Zero,
			CreatedAt:              f.clock.Now(),
		}))
		f.clock.Advance(time.Hour)
	}

	active, err := f.liquidations.ActiveCompliance(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Payroll and receipts", active.DocumentsRequired)
}
