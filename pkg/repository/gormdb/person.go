package gormdb

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"gorm.io/gorm"
)

type personRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Name       string    `gorm:"size:255;not null"`
	Department string    `gorm:"size:255"`
	Title      string    `gorm:"size:255"`
	CreatedAt  time.Time `gorm:"type:datetime(6)"`
	UpdatedAt  time.Time `gorm:"type:datetime(6);autoUpdateTime:false"`
}

func (personRow) TableName() string {
	return "people"
}

func toPersonRow(person *model.Person) *personRow {
	return &personRow{
		ID:         string(person.ID),
		Name:       person.Name,
		Department: person.Department,
		Title:      person.Title,
		CreatedAt:  person.CreatedAt,
		UpdatedAt:  person.UpdatedAt,
	}
}

func (r *personRow) toModel() *model.Person {
	return &model.Person{
		ID:         model.PersonID(r.ID),
		Name:       r.Name,
		Department: r.Department,
		Title:      r.Title,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type personRepository struct {
	db *gorm.DB
}

func (r *personRepository) Create(ctx context.Context, person *model.Person) (*model.Person, error) {
	// MySQL keeps microseconds at best; truncate so the returned model
	// equals what a later Get reads back.
	now := time.Now().UTC().Truncate(time.Microsecond)
	created := *person
	created.ID = model.NewPersonID()
	created.CreatedAt = now
	created.UpdatedAt = now

	if err := created.Validate(); err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Create(toPersonRow(&created)).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to create person", goerr.V("id", created.ID))
	}

	return &created, nil
}

func (r *personRepository) Get(ctx context.Context, id model.PersonID) (*model.Person, error) {
	var row personRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "person not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get person", goerr.V("id", id))
	}
	return row.toModel(), nil
}

func (r *personRepository) List(ctx context.Context) ([]*model.Person, error) {
	var rows []personRow
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to list people")
	}

	people := make([]*model.Person, 0, len(rows))
	for i := range rows {
		people = append(people, rows[i].toModel())
	}
	return people, nil
}

func (r *personRepository) Update(ctx context.Context, person *model.Person) (*model.Person, error) {
	current, err := r.Get(ctx, person.ID)
	if err != nil {
		return nil, err
	}

	updated := *person
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Save(toPersonRow(&updated)).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to update person", goerr.V("id", person.ID))
	}

	return &updated, nil
}

func (r *personRepository) Delete(ctx context.Context, id model.PersonID) error {
	result := r.db.WithContext(ctx).Delete(&personRow{}, "id = ?", string(id))
	if result.Error != nil {
		return goerr.Wrap(result.Error, "failed to delete person", goerr.V("id", id))
	}
	if result.RowsAffected == 0 {
		return goerr.Wrap(ErrNotFound, "person not found", goerr.V("id", id))
	}
	return nil
}
