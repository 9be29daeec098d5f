package hardware

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/jsalmela/attendant/internal/logging"
)

// DefaultClipName is played when a student has no personal greeting clip.
const DefaultClipName = "default.wav"

// Player plays a greeting clip for a confirmed student.
type Player interface {
	Play(ctx context.Context, displayName string) error
}

// WavPlayer plays per-student WAV clips from a sound directory through the
// default playback device. Clip files are named after the student with
// spaces stripped and lower-cased, e.g. "Maija Meikäläinen" →
// "maijameikäläinen.wav", with DefaultClipName as fallback.
type WavPlayer struct {
	soundPath string
	logger    *slog.Logger
}

// NewWavPlayer creates a player reading clips from soundPath.
func NewWavPlayer(soundPath string) *WavPlayer {
	return &WavPlayer{
		soundPath: soundPath,
		logger:    logging.ForService("audio"),
	}
}

// ClipPath resolves the clip file for a display name, falling back to the
// default clip. Returns an empty string when no clip exists at all.
func (p *WavPlayer) ClipPath(displayName string) string {
	cleanName := strings.ToLower(strings.ReplaceAll(displayName, " ", ""))
	path := filepath.Join(p.soundPath, cleanName+".wav")
	if _, err := os.Stat(path); err == nil {
		return path
	}

	path = filepath.Join(p.soundPath, DefaultClipName)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// Play decodes and plays the student's greeting clip. A missing clip is a
// debug log, not an error.
func (p *WavPlayer) Play(ctx context.Context, displayName string) error {
	path := p.ClipPath(displayName)
	if path == "" {
		p.logger.Debug("no greeting clip found", "name", displayName, "path", p.soundPath)
		return nil
	}

	pcm, format, err := decodeWav(path)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}

	return playPCM(ctx, pcm, format)
}

type pcmFormat struct {
	sampleRate uint32
	channels   uint32
}

// decodeWav reads a WAV file into interleaved little-endian S16 PCM.
func decodeWav(path string) ([]byte, pcmFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pcmFormat{}, err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, pcmFormat{}, err
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, pcmFormat{}, fmt.Errorf("empty PCM buffer")
	}

	return bufferToS16LE(buf, int(decoder.BitDepth)), pcmFormat{
		sampleRate: uint32(buf.Format.SampleRate),
		channels:   uint32(buf.Format.NumChannels),
	}, nil
}

// bufferToS16LE converts a decoded PCM buffer to interleaved little-endian
// S16, scaling other bit depths up or down.
func bufferToS16LE(buf *audio.IntBuffer, bitDepth int) []byte {
	shift := bitDepth - 16
	pcm := make([]byte, 0, len(buf.Data)*2)
	var sample [2]byte
	for _, v := range buf.Data {
		s := v
		switch {
		case shift > 0:
			s >>= shift
		case shift < 0:
			s <<= -shift
		}
		binary.LittleEndian.PutUint16(sample[:], uint16(int16(s)))
		pcm = append(pcm, sample[0], sample[1])
	}
	return pcm
}

// fillPlayback copies the next chunk of pcm into the device buffer and
// zeroes the remainder so the device never replays stale buffer contents
// at clip end. Returns the advanced offset.
func fillPlayback(pOutput, pcm []byte, offset int) int {
	n := copy(pOutput, pcm[offset:])
	clear(pOutput[n:])
	return offset + n
}

// playPCM streams the PCM data to the default playback device and blocks
// until the clip finishes or the context is cancelled.
func playPCM(ctx context.Context, pcm []byte, format pcmFormat) error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("initializing audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = format.channels
	deviceConfig.SampleRate = format.sampleRate

	done := make(chan struct{})
	var offset int

	onSamples := func(pOutput, _ []byte, frameCount uint32) {
		offset = fillPlayback(pOutput, pcm, offset)
		if offset >= len(pcm) {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("initializing playback device: %w", err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("starting playback: %w", err)
	}

	select {
	case <-done:
		// Small grace period so the device drains its last buffer.
		time.Sleep(50 * time.Millisecond)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
