package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

// RecordReview appends one entry to a liquidation's review trail. The
// performer's display name is copied onto the row, falling back to the id.
// Only rc_return entries may carry documents for compliance.
func RecordReview(ctx context.Context, reviews port.ReviewRepository, liquidationID string, reviewType entity.ReviewType, actor entity.Actor, remarks string, complianceDocs *string, at time.Time) (*entity.Review, error) {
	if !reviewType.IsValid() {
		return nil, apperr.Validation("review_type", fmt.Sprintf("unknown review type %q", reviewType))
	}
	if complianceDocs != nil && reviewType != entity.ReviewTypeRCReturn {
		return nil, apperr.Validation("documents_for_compliance", "only an rc_return review may list documents for compliance")
	}

	name := actor.Name
	if name == "" {
		name = actor.ID
	}

	review := &entity.Review{
		LiquidationID:          liquidationID,
		ReviewType:             reviewType,
		PerformedBy:            actor.ID,
		PerformedByName:        name,
		Remarks:                remarks,
		DocumentsForCompliance: complianceDocs,
		PerformedAt:            at,
	}
	if err := reviews.Create(ctx, review); err != nil {
		return nil, fmt.Errorf("failed to record %s review: %w", reviewType, err)
	}
	return review, nil
}
