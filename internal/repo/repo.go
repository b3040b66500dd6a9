// Package repo is the gorm-backed store layer. Uniqueness and referential
// checks here are check-then-act: there is no transaction spanning a
// handler's duplicate check and the following write, matching the scale this
// service is built for.
package repo

import (
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

type Repo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Repo {
	return &Repo{DB: db}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
