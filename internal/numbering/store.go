package numbering

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sme-docengine/internal/models"
)

// GormStore reads the last number from the documents table. Pass the
// transaction that will insert the new document so the read and the insert
// commit together.
type GormStore struct {
	DB *gorm.DB
}

func (s GormStore) LastNumber(ctx context.Context, tenantID uint, kind models.Kind) (string, bool, error) {
	var doc models.Document
	err := s.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "number").
		Where("tenant_id = ? AND kind = ?", tenantID, kind).
		Order("id DESC").
		Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.Number, true, nil
}
