package service

import (
	"github.com/noah-isme/sma-records/internal/models"
	appErrors "github.com/noah-isme/sma-records/pkg/errors"
)

func duplicate(e models.Entity) error {
	return appErrors.DuplicateID(string(e.Kind()), e.EntityID())
}

func notFound(kind models.Kind, id string) error {
	return appErrors.NotFound(string(kind), id)
}
