package nutrilens

import "context"

// IngredientLibrary persists learned per-user ingredient profiles.
//
// SaveIngredient inserts entries whose Version is zero and updates the rest
// only if the stored version still matches, bumping Version on success.
// Both a stale update and an insert racing another insert for the same
// (user, normalized name) fail with ErrVersionConflict.
type IngredientLibrary interface {
	FindByUserOrderByConfidenceDesc(ctx context.Context, userID string) ([]UserIngredient, error)
	FindByUserAndNormalizedName(ctx context.Context, userID, normalizedName string) (*UserIngredient, error)
	SaveIngredient(ctx context.Context, entry *UserIngredient) error
}

// CorrectionStore is an append-only log of correction records.
type CorrectionStore interface {
	AppendCorrection(ctx context.Context, rec *CorrectionRecord) error
	Corrections(ctx context.Context, q CorrectionQuery) ([]CorrectionRecord, error)
}
