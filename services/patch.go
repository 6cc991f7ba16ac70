package services

import (
	"errors"
	"fmt"

	"structura/apperr"

	"gorm.io/gorm"
)

// setIf copies *v into dst when the patch carries the field.
func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setPtrIf[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

// requireRow fails with NotFound unless model's table holds id.
func requireRow(tx *gorm.DB, model any, id uint, entity string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("checking %s %d: %w", entity, id, err)
	}
	if count == 0 {
		return apperr.NotFound(entity, id)
	}
	return nil
}

// requireRef is requireRow for ids taken from a request body: a missing row is
// a bad reference, anything else passes through untouched.
func requireRef(tx *gorm.DB, model any, id uint, entity string) error {
	err := requireRow(tx, model, id, entity)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.InvalidReference(entity, id)
	}
	return err
}
