package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

const (
	formatPCM   = 1
	formatFloat = 3
)

// Info describes a RIFF/WAVE file together with its loudness.
type Info struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	Samples       int64
	RMSdBFS       float64
	PeakdBFS      float64
}

// MatchesTarget reports whether the file already has the layout the
// transcription engine expects.
func (i Info) MatchesTarget(sampleRate, channels int) bool {
	return i.AudioFormat == formatPCM && i.BitsPerSample == 16 && i.SampleRate == sampleRate && i.Channels == channels
}

// IsSilent applies the silence gate: RMS at or below the threshold and no
// peak more than 6 dB above it.
func (i Info) IsSilent(thresholdDBFS float64) bool {
	if i.Samples == 0 {
		return true
	}
	if math.IsInf(i.RMSdBFS, -1) && math.IsInf(i.PeakdBFS, -1) {
		return true
	}
	return i.RMSdBFS <= thresholdDBFS && i.PeakdBFS <= thresholdDBFS+6
}

func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Info{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return Info{}, fmt.Errorf("read wav header: %w", err)
	}
	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return Info{}, ErrInvalidWAV
	}

	var (
		info     Info
		hasFmt   bool
		dataSize int64 = -1
	)

	for dataSize < 0 {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(f, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Info{}, ErrInvalidWAV
			}
			return Info{}, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))
		padded := chunkSize + chunkSize%2

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return Info{}, ErrInvalidWAV
			}
			buf := make([]byte, padded)
			if _, err := io.ReadFull(f, buf); err != nil && !(errors.Is(err, io.ErrUnexpectedEOF) && chunkSize%2 != 0) {
				return Info{}, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			info.AudioFormat = binary.LittleEndian.Uint16(buf[0:2])
			info.Channels = int(binary.LittleEndian.Uint16(buf[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(buf[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(buf[14:16]))
			hasFmt = true
		case "data":
			dataSize = chunkSize
		default:
			if _, err := f.Seek(padded, io.SeekCurrent); err != nil {
				return Info{}, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}
	}

	if !hasFmt {
		return Info{}, ErrInvalidWAV
	}
	if err := validateFormat(info.AudioFormat, info.BitsPerSample); err != nil {
		return Info{}, err
	}

	peak, sumSquares, samples, err := measure(io.LimitReader(f, dataSize), info.AudioFormat, info.BitsPerSample)
	if err != nil {
		return Info{}, err
	}

	info.Samples = samples
	if samples == 0 {
		info.RMSdBFS = math.Inf(-1)
		info.PeakdBFS = math.Inf(-1)
		return info, nil
	}

	info.RMSdBFS = amplitudeToDBFS(math.Sqrt(sumSquares / float64(samples)))
	info.PeakdBFS = amplitudeToDBFS(peak)
	return info, nil
}

func validateFormat(audioFormat uint16, bitsPerSample int) error {
	switch audioFormat {
	case formatPCM:
		switch bitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case formatFloat:
		switch bitsPerSample {
		case 32, 64:
			return nil
		}
	}
	return ErrUnsupportedWAV
}

// measure streams the data chunk so hour-long recordings are never held in
// memory at once.
func measure(r io.Reader, audioFormat uint16, bitsPerSample int) (float64, float64, int64, error) {
	width := bitsPerSample / 8
	reader := bufio.NewReaderSize(r, 64*1024)
	sample := make([]byte, width)

	var (
		peak       float64
		sumSquares float64
		samples    int64
	)

	for {
		if _, err := io.ReadFull(reader, sample); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, 0, 0, fmt.Errorf("read wav data: %w", err)
		}

		value := decodeSample(sample, audioFormat, bitsPerSample)
		if abs := math.Abs(value); abs > peak {
			peak = abs
		}
		sumSquares += value * value
		samples++
	}

	return peak, sumSquares, samples, nil
}

func decodeSample(sample []byte, audioFormat uint16, bitsPerSample int) float64 {
	if audioFormat == formatFloat {
		if bitsPerSample == 32 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(sample)))
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(sample))
	}

	switch bitsPerSample {
	case 8:
		return (float64(sample[0]) - 128.0) / 128.0
	case 16:
		return float64(int16(binary.LittleEndian.Uint16(sample))) / 32768.0
	case 24:
		v := int32(sample[0]) | int32(sample[1])<<8 | int32(sample[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / 8388608.0
	default:
		return float64(int32(binary.LittleEndian.Uint32(sample))) / 2147483648.0
	}
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
