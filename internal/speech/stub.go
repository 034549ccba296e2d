package speech

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

const (
	DefaultWordsPerMinute = 150.0
	minStubDuration       = 0.5

	wavSampleRate      = 44100
	wavNumChannels     = 1
	wavBitsPerSample   = 16
	wavHeaderSize      = 44
	wavSubchunkSize    = 16
	wavAudioFormat     = 1
	wavChunkSizeOffset = 36
)

var _ Provider = (*StubProvider)(nil)

// StubProvider writes silent WAV audio sized to the text's reading time.
type StubProvider struct {
	wordsPerMinute float64
}

func NewStubProvider(wordsPerMinute float64) *StubProvider {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	return &StubProvider{wordsPerMinute: wordsPerMinute}
}

func (s *StubProvider) Extension() string {
	return "wav"
}

func (s *StubProvider) Synthesize(ctx context.Context, req Request, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := w.Write(SilentWAV(s.EstimateDuration(req.Text))); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	return nil
}

func (s *StubProvider) EstimateDuration(text string) float64 {
	words := len(strings.Fields(text))
	return max(float64(words)/s.wordsPerMinute*60.0, minStubDuration)
}

// SilentWAV encodes durationSec seconds of 16-bit mono silence.
func SilentWAV(durationSec float64) []byte {
	bytesPerSample := wavBitsPerSample / 8
	numSamples := int(durationSec * float64(wavSampleRate))
	dataSize := numSamples * wavNumChannels * bytesPerSample
	byteRate := wavSampleRate * wavNumChannels * bytesPerSample
	blockAlign := wavNumChannels * bytesPerSample

	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(wavChunkSizeOffset+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], wavSubchunkSize)
	binary.LittleEndian.PutUint16(buf[20:22], wavAudioFormat)
	binary.LittleEndian.PutUint16(buf[22:24], wavNumChannels)
	binary.LittleEndian.PutUint32(buf[24:28], wavSampleRate)
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], wavBitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	return buf
}
