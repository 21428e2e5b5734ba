package media

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/playback"
	"github.com/osa030/19deck/internal/infra/config"
)

// Output types
const (
	OutputSpeaker  = "speaker"
	OutputHeadless = "none"
)

// New creates the handle selected by cfg.Type, decoding cfg.Settings into
// the handle's configuration.
func New(cfg config.OutputConfig) (playback.Handle, error) {
	zlog.Debug().Msgf("media: creating handle: type=%s settings=%+v", cfg.Type, cfg.Settings)

	switch cfg.Type {
	case OutputSpeaker, "":
		var sc SpeakerConfig
		if err := decodeSettings(cfg.Settings, &sc); err != nil {
			return nil, errors.Wrap(err, "invalid speaker settings")
		}
		return NewSpeakerHandle(sc), nil

	case OutputHeadless, "headless":
		h, err := NewHeadless(cfg.Settings)
		if err != nil {
			return nil, err
		}
		return h, nil

	default:
		return nil, errors.Newf("unsupported output type: %s", cfg.Type)
	}
}

// NewHeadless creates a headless handle from an output settings map. Keys
// meant for other output types are ignored.
func NewHeadless(settings map[string]any) (*HeadlessHandle, error) {
	var hc HeadlessConfig
	if err := decodeSettings(settings, &hc); err != nil {
		return nil, errors.Wrap(err, "invalid headless settings")
	}
	return NewHeadlessHandle(hc), nil
}

// decodeSettings fills out from settings, applies defaults, and validates.
func decodeSettings(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
