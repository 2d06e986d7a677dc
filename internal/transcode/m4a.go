package transcode

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/llehouerou/alac"
	"github.com/llehouerou/go-faad2"
	"github.com/llehouerou/go-m4a"
)

// m4aStream adapts the go-m4a container reader plus an AAC or ALAC codec
// to beep.StreamSeekCloser. Output is always stereo float64 frames.
type m4aStream struct {
	container  *m4a.Reader
	closer     io.Closer
	codec      m4a.CodecType
	err        error
	sampleIdx  int
	totalLen   int
	sampleSize int // bits per sample for ALAC (16 or 24)
	channels   int

	aacDec  *faad2.Decoder
	alacDec *alac.Alac

	// decoded frames pending delivery
	pending [][2]float64
	offset  int
}

func decodeM4A(rc io.ReadSeekCloser) (beep.StreamSeekCloser, beep.Format, error) {
	container, err := m4a.Open(rc)
	if err != nil {
		return nil, beep.Format{}, err
	}

	codec := container.Codec()
	sampleRate := container.SampleRate()

	precision := 2
	if codec == m4a.CodecALAC && container.SampleSize() == 24 {
		precision = 3
	}

	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 2, // mono input gets duplicated
		Precision:   precision,
	}

	s := &m4aStream{
		container:  container,
		closer:     rc,
		codec:      codec,
		totalLen:   int(container.Duration().Seconds() * float64(sampleRate)),
		sampleSize: int(container.SampleSize()),
		channels:   int(container.Channels()),
	}

	switch codec {
	case m4a.CodecAAC:
		dec, err := faad2.NewDecoder(context.Background())
		if err != nil {
			return nil, beep.Format{}, err
		}
		if err := dec.Init(context.Background(), container.CodecConfig()); err != nil {
			dec.Close(context.Background())
			return nil, beep.Format{}, err
		}
		s.aacDec = dec

	case m4a.CodecALAC:
		dec, err := alac.NewWithConfig(alac.Config{
			SampleRate:  int(sampleRate),
			SampleSize:  s.sampleSize,
			NumChannels: s.channels,
			FrameSize:   4096, // ALAC default
		})
		if err != nil {
			return nil, beep.Format{}, err
		}
		s.alacDec = dec

	case m4a.CodecUnknown:
		return nil, beep.Format{}, errors.New("unsupported codec in M4A container")
	}

	return s, format, nil
}

func (s *m4aStream) Stream(samples [][2]float64) (n int, ok bool) {
	if s.err != nil {
		return 0, false
	}

	for n < len(samples) {
		// Drain buffered frames first
		for n < len(samples) && s.offset < len(s.pending) {
			samples[n] = s.pending[s.offset]
			s.offset++
			n++
		}
		if n == len(samples) {
			return n, true
		}

		if s.sampleIdx >= s.container.SampleCount() {
			return n, n > 0
		}

		data, err := s.container.ReadSample(s.sampleIdx)
		if err != nil {
			s.err = err
			return n, n > 0
		}
		s.sampleIdx++

		switch s.codec {
		case m4a.CodecAAC:
			pcm, err := s.aacDec.Decode(context.Background(), data)
			if err != nil {
				s.err = err
				return n, n > 0
			}
			s.pending = s.int16Frames(pcm)
		case m4a.CodecALAC:
			s.pending = s.alacFrames(s.alacDec.Decode(data))
		case m4a.CodecUnknown:
			s.err = errors.New("unsupported codec")
			return n, n > 0
		}
		s.offset = 0
	}

	return n, true
}

// int16Frames converts interleaved int16 PCM to stereo float64 frames,
// duplicating mono to both channels.
func (s *m4aStream) int16Frames(pcm []int16) [][2]float64 {
	if s.channels == 2 {
		frames := make([][2]float64, len(pcm)/2)
		for i := range frames {
			frames[i][0] = float64(pcm[i*2]) / 32768.0
			frames[i][1] = float64(pcm[i*2+1]) / 32768.0
		}
		return frames
	}
	frames := make([][2]float64, len(pcm))
	for i, v := range pcm {
		f := float64(v) / 32768.0
		frames[i][0] = f
		frames[i][1] = f
	}
	return frames
}

// alacFrames converts raw ALAC PCM bytes (16- or 24-bit little-endian,
// interleaved) to stereo float64 frames.
func (s *m4aStream) alacFrames(data []byte) [][2]float64 {
	bytesPerSample := s.sampleSize / 8
	bytesPerFrame := bytesPerSample * s.channels
	if bytesPerFrame == 0 {
		return nil
	}
	count := len(data) / bytesPerFrame
	frames := make([][2]float64, count)

	readSample := func(off int) float64 {
		if bytesPerSample == 3 {
			v := int32(data[off]) | int32(data[off+1])<<8 | int32(data[off+2])<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF // sign extend
			}
			return float64(v) / 8388608.0 // 2^23
		}
		v := int16(data[off]) | int16(data[off+1])<<8
		return float64(v) / 32768.0
	}

	for i := range count {
		off := i * bytesPerFrame
		left := readSample(off)
		right := left
		if s.channels == 2 {
			right = readSample(off + bytesPerSample)
		}
		frames[i][0] = left
		frames[i][1] = right
	}
	return frames
}

func (s *m4aStream) Err() error {
	return s.err
}

func (s *m4aStream) Len() int {
	return s.totalLen
}

func (s *m4aStream) Position() int {
	pos := s.container.SampleTime(s.sampleIdx)
	return int(pos.Seconds() * float64(s.container.SampleRate()))
}

func (s *m4aStream) Seek(p int) error {
	if p < 0 {
		p = 0
	}
	if p > s.totalLen {
		p = s.totalLen
	}

	pos := time.Duration(float64(p) / float64(s.container.SampleRate()) * float64(time.Second))
	s.sampleIdx = s.container.SeekToTime(pos)
	s.pending = nil
	s.offset = 0
	s.err = nil
	return nil
}

func (s *m4aStream) Close() error {
	if s.aacDec != nil {
		s.aacDec.Close(context.Background())
	}
	return s.closer.Close()
}
