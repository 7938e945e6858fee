package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/apperr"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
)

// Effect is how a written option combines with the stored value.
type Effect int

const (
	EffectReplace Effect = iota
	// EffectMerge overlays the keys of an object onto the stored object.
	EffectMerge
)

// SettingOption is one writable settings field. Keys outside this list are ignored.
type SettingOption struct {
	Name   string
	Effect Effect
	Parse  func(raw any) (any, error)
}

var SettingOptions = []SettingOption{
	{Name: "appName", Effect: EffectReplace, Parse: parseAppName},
	{Name: "theme", Effect: EffectReplace, Parse: parseTheme},
	{Name: "notificationSettings", Effect: EffectMerge, Parse: parseNotifications},
}

type SettingsService struct {
	settings *repository.SettingsRepository
	log      zerolog.Logger
}

func NewSettingsService(settings *repository.SettingsRepository, log zerolog.Logger) *SettingsService {
	return &SettingsService{settings: settings, log: log}
}

// Get returns the stored settings, or the defaults with configured=false.
func (s *SettingsService) Get(ctx context.Context) (models.Settings, bool, error) {
	current, err := s.settings.Get(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return models.DefaultSettings(), false, nil
	}
	if err != nil {
		return models.Settings{}, false, apperr.Internal("failed to load settings", err)
	}
	return current, true, nil
}

// Write upserts the singleton from the allow-listed keys of input.
func (s *SettingsService) Write(ctx context.Context, input map[string]any) (models.Settings, error) {
	return s.write(ctx, input, true)
}

// write makes one attempt; a lost race against another writer is retried once
// when retry is set.
func (s *SettingsService) write(ctx context.Context, input map[string]any, retry bool) (models.Settings, error) {
	current, configured, err := s.Get(ctx)
	if err != nil {
		return models.Settings{}, err
	}

	set, err := applyOptions(settingsDocument(current), input)
	if err != nil {
		return models.Settings{}, err
	}

	if !configured {
		doc := settingsDocument(current)
		for k, v := range set {
			doc[k] = v
		}
		created, err := s.settings.Create(ctx, doc)
		if errors.Is(err, repository.ErrDuplicate) && retry {
			// another writer created it first; merge onto theirs
			return s.write(ctx, input, false)
		}
		if err != nil {
			return models.Settings{}, apperr.Internal("failed to save settings", err)
		}
		s.log.Info().Msg("settings created")
		return created, nil
	}

	if len(set) == 0 {
		return current, nil
	}
	updated, err := s.settings.Update(ctx, set)
	if errors.Is(err, repository.ErrNotFound) && retry {
		return s.write(ctx, input, false)
	}
	if err != nil {
		return models.Settings{}, apperr.Internal("failed to save settings", err)
	}
	return updated, nil
}

func applyOptions(current models.Document, input map[string]any) (models.Document, error) {
	set := models.Document{}
	for _, opt := range SettingOptions {
		raw, ok := input[opt.Name]
		if !ok {
			continue
		}
		v, err := opt.Parse(raw)
		if err != nil {
			return nil, err
		}
		switch opt.Effect {
		case EffectMerge:
			merged := map[string]any{}
			if existing, ok := current[opt.Name].(map[string]any); ok {
				for k, ev := range existing {
					merged[k] = ev
				}
			}
			for k, nv := range v.(map[string]any) {
				merged[k] = nv
			}
			set[opt.Name] = merged
		default:
			set[opt.Name] = v
		}
	}
	return set, nil
}

func settingsDocument(s models.Settings) models.Document {
	return models.Document{
		"appName": s.AppName,
		"theme":   string(s.Theme),
		"notificationSettings": map[string]any{
			"email": s.NotificationSettings.Email,
			"sms":   s.NotificationSettings.SMS,
			"push":  s.NotificationSettings.Push,
		},
	}
}

func parseAppName(raw any) (any, error) {
	name, ok := raw.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("App name must be a non-empty string")
	}
	return strings.TrimSpace(name), nil
}

func parseTheme(raw any) (any, error) {
	theme, _ := raw.(string)
	t := models.Theme(strings.ToLower(strings.TrimSpace(theme)))
	if !t.Valid() {
		return nil, apperr.Validation("Theme must be light or dark")
	}
	return string(t), nil
}

var notificationChannels = []string{"email", "sms", "push"}

func parseNotifications(raw any) (any, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, apperr.Validation("Notification settings must be an object")
	}
	out := map[string]any{}
	for _, channel := range notificationChannels {
		v, present := obj[channel]
		if !present {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return nil, apperr.Validationf("Notification setting %s must be true or false", channel)
		}
		out[channel] = b
	}
	return out, nil
}
