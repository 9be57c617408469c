package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/testutil/memstore"
)

func TestRecordReview(t *testing.T) {
	at := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	docs := "Official receipts"

	tests := []struct {
		name     string
		typ      entity.ReviewType
		actor    entity.Actor
		docs     *string
		wantKind apperr.Kind
		wantName string
	}{
		{
			name:     "name snapshot",
			typ:      entity.ReviewTypeRCEndorsement,
			actor:    entity.Actor{ID: "u-rc", Name: "Rico Santos"},
			wantName: "Rico Santos",
		},
		{
			name:     "falls back to id",
			typ:      entity.ReviewTypeAccountantReturn,
			actor:    entity.Actor{ID: "u-acct"},
			wantName: "u-acct",
		},
		{
			name:     "rc_return may carry documents",
			typ:      entity.ReviewTypeRCReturn,
			actor:    entity.Actor{ID: "u-rc"},
			docs:     &docs,
			wantName: "u-rc",
		},
		{
			name:     "documents on another type",
			typ:      entity.ReviewTypeAccountantReturn,
			actor:    entity.Actor{ID: "u-acct"},
			docs:     &docs,
			wantKind: apperr.KindValidation,
		},
		{
			name:     "unknown type",
			typ:      entity.ReviewType("coa_audit"),
			actor:    entity.Actor{ID: "u-acct"},
			wantKind: apperr.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			review, err := RecordReview(context.Background(), store.Reviews(), "liq-1", tt.typ, tt.actor, "remarks", tt.docs, at)

			if tt.wantKind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantKind, apperr.KindOf(err))
				trail, listErr := store.Reviews().ListByLiquidationID(context.Background(), "liq-1")
				require.NoError(t, listErr)
				assert.Empty(t, trail)
				return
			}

			require.NoError(t, err)
			assert.NotZero(t, review.ID)
			assert.Equal(t, tt.wantName, review.PerformedByName)
			assert.Equal(t, at, review.PerformedAt)
			assert.Equal(t, tt.docs, review.DocumentsForCompliance)
		})
	}
}
