package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// riffHeader is the 12-byte RIFF container preamble.
type riffHeader struct {
	ChunkID   [4]byte
	ChunkSize uint32
	Format    [4]byte
}

// fmtChunk is the PCM format block. Encoders may append extension bytes
// after it; only this prefix is read.
type fmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Waveform is a decoded mono PCM signal.
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Decode parses mono PCM-16 WAV data into normalized [-1, 1] samples. The
// chunk list is walked rather than assumed: ffmpeg's WAV muxer writes a
// LIST/INFO metadata chunk between fmt and data, and any chunk other than
// those two is skipped.
func Decode(data []byte) (*Waveform, error) {
	buf := bytes.NewReader(data)

	var rh riffHeader
	if err := binary.Read(buf, binary.LittleEndian, &rh); err != nil {
		return nil, fmt.Errorf("read riff header: %w", err)
	}
	if string(rh.ChunkID[:]) != "RIFF" || string(rh.Format[:]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	var format fmtChunk
	haveFormat := false

	for {
		var id [4]byte
		if _, err := io.ReadFull(buf, id[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("missing data chunk")
			}
			return nil, fmt.Errorf("read chunk id: %w", err)
		}
		var size uint32
		if err := binary.Read(buf, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("read chunk size: %w", err)
		}

		switch string(id[:]) {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			if err := binary.Read(buf, binary.LittleEndian, &format); err != nil {
				return nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			if err := skip(buf, int64(size)-16); err != nil {
				return nil, err
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			return decodeSamples(format, buf, size)
		default:
			if err := skip(buf, int64(size)); err != nil {
				return nil, err
			}
		}

		// Chunks are word aligned; odd sizes carry a pad byte.
		if size%2 == 1 {
			if err := skip(buf, 1); err != nil {
				return nil, err
			}
		}
	}
}

func skip(buf *bytes.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := buf.Seek(n, io.SeekCurrent); err != nil {
		return fmt.Errorf("skip chunk: %w", err)
	}
	return nil
}

func decodeSamples(format fmtChunk, buf *bytes.Reader, dataSize uint32) (*Waveform, error) {
	if format.AudioFormat != 1 {
		return nil, fmt.Errorf("unsupported audio format %d, want PCM", format.AudioFormat)
	}
	if format.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d, want 16", format.BitsPerSample)
	}
	if format.NumChannels != 1 {
		return nil, fmt.Errorf("unsupported channel count %d, want mono", format.NumChannels)
	}
	if format.SampleRate == 0 {
		return nil, fmt.Errorf("invalid sample rate 0")
	}

	numSamples := int(dataSize) / 2
	if remaining := buf.Len() / 2; numSamples > remaining {
		numSamples = remaining
	}
	if numSamples <= 0 {
		return nil, fmt.Errorf("no audio data")
	}

	raw := make([]int16, numSamples)
	if err := binary.Read(buf, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}

	samples := make([]float64, numSamples)
	for i, s := range raw {
		samples[i] = float64(s) / 32768.0
	}

	return &Waveform{Samples: samples, SampleRate: int(format.SampleRate)}, nil
}

// DecodeFile reads and decodes a WAV file from disk.
func DecodeFile(path string) (*Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Decode(data)
}

// Encode serializes PCM-16 samples into a canonical mono WAV byte stream.
func Encode(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty sample set")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	dataSize := uint32(len(samples) * 2)
	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))

	rh := riffHeader{
		ChunkID:   [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize: 36 + dataSize,
		Format:    [4]byte{'W', 'A', 'V', 'E'},
	}
	format := fmtChunk{
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
	}

	for _, part := range []any{
		rh,
		[4]byte{'f', 'm', 't', ' '}, uint32(16), format,
		[4]byte{'d', 'a', 't', 'a'}, dataSize, samples,
	} {
		if err := binary.Write(buf, binary.LittleEndian, part); err != nil {
			return nil, fmt.Errorf("write wav: %w", err)
		}
	}
	return buf.Bytes(), nil
}
