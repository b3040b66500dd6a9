package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"technotes/internal/models"
)

const (
	ticketCounter = "note_ticket"
	ticketStart   = 500
)

func (r *Repo) ListNotes(ctx context.Context) ([]models.Note, error) {
	var notes []models.Note
	if err := r.DB.WithContext(ctx).Order("ticket ASC").Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *Repo) NoteByID(ctx context.Context, id uuid.UUID) (*models.Note, error) {
	var note models.Note
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&note).Error; err != nil {
		return nil, translate(err)
	}
	return &note, nil
}

func (r *Repo) NoteByTitleFold(ctx context.Context, title string) (*models.Note, error) {
	var note models.Note
	if err := r.DB.WithContext(ctx).Where("LOWER(title) = LOWER(?)", title).First(&note).Error; err != nil {
		return nil, translate(err)
	}
	return &note, nil
}

// CreateNote stores the note and assigns its ticket number from the counter
// row inside one transaction. The counter is bumped with an atomic in-place
// update and never decremented, so tickets are unique and strictly
// increasing from 500 even across deletions.
func (r *Repo) CreateNote(ctx context.Context, note *models.Note) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter := models.Counter{Name: ticketCounter}
		if err := tx.Where(models.Counter{Name: ticketCounter}).
			Attrs(models.Counter{Value: ticketStart - 1}).
			FirstOrCreate(&counter).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Counter{}).
			Where("name = ?", ticketCounter).
			Update("value", gorm.Expr("value + 1")).Error; err != nil {
			return err
		}

		if err := tx.Where("name = ?", ticketCounter).First(&counter).Error; err != nil {
			return err
		}

		note.Ticket = counter.Value
		return tx.Create(note).Error
	})
}

func (r *Repo) SaveNote(ctx context.Context, note *models.Note) error {
	return r.DB.WithContext(ctx).Save(note).Error
}

func (r *Repo) DeleteNote(ctx context.Context, id uuid.UUID) error {
	return r.DB.WithContext(ctx).Delete(&models.Note{}, "id = ?", id).Error
}
