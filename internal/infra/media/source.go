// Package media provides playback handles backed by an audio device or a wall clock.
package media

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	"github.com/gabriel-vasile/mimetype"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/19deck/internal/app/playback"
)

// Errors
var (
	ErrEmptySource = errors.New("empty source")
	ErrNoSource    = errors.New("no source loaded")
	ErrClosed      = errors.New("handle closed")
	ErrEmptyStream = errors.New("stream has no samples")
	ErrPlayRefused = errors.New("play refused")
)

// Track is a decoded media resource.
type Track struct {
	Stream beep.StreamSeekCloser
	Format beep.Format
	Type   string // Detected MIME type
}

// Duration returns the track length.
func (t *Track) Duration() time.Duration {
	return t.Format.SampleRate.D(t.Stream.Len())
}

// Fetch reads src fully into memory. src may be a local path, a file:// URL,
// or an http(s):// URL. Failures are returned as *playback.MediaError.
func Fetch(ctx context.Context, client *http.Client, src string) ([]byte, error) {
	if strings.TrimSpace(src) == "" {
		return nil, playback.NewMediaError(playback.ErrorSrcNotSupported, ErrEmptySource)
	}

	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters
		return readFile(ctx, src)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return readFile(ctx, u.Path)
	case "http", "https":
		return fetchHTTP(ctx, client, u.String())
	default:
		return nil, playback.NewMediaError(playback.ErrorSrcNotSupported,
			errors.Newf("unsupported scheme %q", u.Scheme))
	}
}

func readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, playback.NewMediaError(playback.ErrorAborted, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, playback.NewMediaError(playback.ErrorUnknown, errors.Wrapf(err, "failed to read %s", path))
	}
	return data, nil
}

func fetchHTTP(ctx context.Context, client *http.Client, src string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, "GET", src, nil)
	if err != nil {
		return nil, playback.NewMediaError(playback.ErrorSrcNotSupported, errors.Wrap(err, "failed to create request"))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, playback.NewMediaError(playback.ErrorNetwork,
			errors.Newf("unexpected status %d fetching %s", resp.StatusCode, src))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}

	zlog.Debug().Msgf("media: fetched source: url=%s bytes=%d", src, len(data))
	return data, nil
}

// classifyTransport maps a transport failure to aborted or network.
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(err, context.Canceled) {
		return playback.NewMediaError(playback.ErrorAborted, err)
	}
	return playback.NewMediaError(playback.ErrorNetwork, err)
}

// Decode sniffs the media type of data and opens a seekable stream.
func Decode(data []byte) (*Track, error) {
	mt := mimetype.Detect(data)
	rc := readSeekNopCloser{bytes.NewReader(data)}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch {
	case mt.Is("audio/mpeg"):
		s, format, err = mp3.Decode(rc)
	case mt.Is("audio/wav"):
		s, format, err = wav.Decode(rc)
	case mt.Is("audio/flac"):
		s, format, err = flac.Decode(rc)
	case mt.Is("audio/ogg"), mt.Is("application/ogg"):
		s, format, err = vorbis.Decode(rc)
	default:
		return nil, playback.NewMediaError(playback.ErrorSrcNotSupported,
			errors.Newf("unsupported media type %s", mt.String()))
	}
	if err != nil {
		return nil, playback.NewMediaError(playback.ErrorDecode, errors.Wrapf(err, "failed to decode %s", mt.String()))
	}
	if s.Len() <= 0 {
		_ = s.Close()
		return nil, playback.NewMediaError(playback.ErrorDecode, ErrEmptyStream)
	}

	return &Track{Stream: s, Format: format, Type: mt.String()}, nil
}

// Open fetches and decodes src.
func Open(ctx context.Context, client *http.Client, src string) (*Track, error) {
	data, err := Fetch(ctx, client, src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, playback.NewMediaError(playback.ErrorAborted, err)
	}
	return Decode(data)
}

// asMediaError returns err as a *playback.MediaError, defaulting to unknown.
func asMediaError(err error) *playback.MediaError {
	var me *playback.MediaError
	if errors.As(err, &me) {
		return me
	}
	return playback.NewMediaError(playback.ErrorUnknown, err)
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }
