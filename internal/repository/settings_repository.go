package repository

import (
	"context"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

const (
	CollectionSettings = "settings"
	// SettingsID is the fixed id of the singleton settings record.
	SettingsID = "app"
)

type SettingsRepository struct {
	store Store
}

func NewSettingsRepository(store Store) *SettingsRepository {
	return &SettingsRepository{store: store}
}

func (r *SettingsRepository) Get(ctx context.Context) (models.Settings, error) {
	doc, err := r.store.FindByID(ctx, CollectionSettings, SettingsID)
	if err != nil {
		return models.Settings{}, err
	}
	return toSettings(doc)
}

// Create inserts the singleton. ErrDuplicate means another writer created it first.
func (r *SettingsRepository) Create(ctx context.Context, fields models.Document) (models.Settings, error) {
	doc := fields.Clone()
	doc[models.FieldID] = SettingsID
	stored, err := r.store.Insert(ctx, CollectionSettings, doc)
	if err != nil {
		return models.Settings{}, err
	}
	return toSettings(stored)
}

func (r *SettingsRepository) Update(ctx context.Context, set models.Document) (models.Settings, error) {
	stored, err := r.store.Update(ctx, CollectionSettings, SettingsID, nil, set)
	if err != nil {
		return models.Settings{}, err
	}
	return toSettings(stored)
}

func toSettings(doc models.Document) (models.Settings, error) {
	var s models.Settings
	if err := decodeDocument(doc, &s); err != nil {
		return models.Settings{}, err
	}
	return s, nil
}
