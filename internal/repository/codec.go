package repository

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/models"
)

// decodeDocument maps a stored document onto a typed model using its mapstructure tags.
func decodeDocument(doc models.Document, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]any(doc)); err != nil {
		return fmt.Errorf("decode %s: %w", doc.ID(), err)
	}
	return nil
}
