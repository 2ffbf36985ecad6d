package repository

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"

	"taskmanager/internal/errors"
)

// translate maps storage errors onto the domain taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return errors.ErrRecordNotFound
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Wrap(errors.KindConflict, errors.ErrDuplicateRecord.Message, err)
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.Is(err, context.Canceled):
		return errors.Wrap(errors.KindTransient, "storage timeout", err)
	default:
		return errors.Wrap(errors.KindInternal, "storage failure", err)
	}
}
