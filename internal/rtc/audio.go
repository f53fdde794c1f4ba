package rtc

import (
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"
)

const (
	trackSampleRate = 48000
	frameSamples    = 960 // 20ms at 48kHz
	frameInterval   = 20 * time.Millisecond
)

// OpusWriter encodes 16-bit LE mono PCM to Opus and writes 20ms frames to a
// WebRTC track at playback pace. Input PCM may arrive at any rate; it is
// resampled to the track's 48kHz.
type OpusWriter struct {
	enc       *opus.Encoder
	track     *webrtc.TrackLocalStaticSample
	inputRate int

	mu      sync.Mutex
	pcmBuf  []int16
	frames  chan []byte
	stopCh  chan struct{}
	stopped bool
}

// NewOpusWriter creates a paced writer for the given track.
func NewOpusWriter(track *webrtc.TrackLocalStaticSample, inputRate int) (*OpusWriter, error) {
	enc, err := opus.NewEncoder(trackSampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	w := &OpusWriter{
		enc:       enc,
		track:     track,
		inputRate: inputRate,
		frames:    make(chan []byte, 512),
		stopCh:    make(chan struct{}),
	}
	go w.pacer()
	return w, nil
}

// WritePCM buffers PCM at the input rate and emits encoded frames as enough
// samples accumulate.
func (w *OpusWriter) WritePCM(pcmBytes []byte) {
	if len(pcmBytes) < 2 {
		return
	}
	samples := bytesToSamples(pcmBytes)
	samples = resample(samples, w.inputRate, trackSampleRate)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pcmBuf = append(w.pcmBuf, samples...)
	w.encodeFullFrames()
}

// FlushTail pads the remaining PCM to a full frame and appends a short
// silence tail so the last word is not clipped.
func (w *OpusWriter) FlushTail() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pcmBuf) > 0 {
		pad := make([]int16, frameSamples)
		copy(pad, w.pcmBuf)
		w.encodeFrame(pad)
		w.pcmBuf = w.pcmBuf[:0]
	}
	silence := make([]int16, frameSamples)
	for i := 0; i < 10; i++ {
		w.encodeFrame(silence)
	}
}

// Reset drops buffered PCM and queued frames so playback stops immediately.
func (w *OpusWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pcmBuf = w.pcmBuf[:0]
	for {
		select {
		case <-w.frames:
		default:
			return
		}
	}
}

// Close stops the pacer. Safe to call more than once.
func (w *OpusWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.stopped {
		w.stopped = true
		close(w.stopCh)
	}
}

func (w *OpusWriter) encodeFullFrames() {
	for len(w.pcmBuf) >= frameSamples {
		w.encodeFrame(w.pcmBuf[:frameSamples])
		copy(w.pcmBuf, w.pcmBuf[frameSamples:])
		w.pcmBuf = w.pcmBuf[:len(w.pcmBuf)-frameSamples]
	}
}

func (w *OpusWriter) encodeFrame(frame []int16) {
	buf := make([]byte, 4000)
	n, err := w.enc.Encode(frame, buf)
	if err != nil || n == 0 {
		return
	}
	pkt := make([]byte, n)
	copy(pkt, buf[:n])
	select {
	case <-w.stopCh:
	case w.frames <- pkt:
	}
}

func (w *OpusWriter) pacer() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			select {
			case frame := <-w.frames:
				_ = w.track.WriteSample(media.Sample{Data: frame, Duration: frameInterval})
			default:
			}
		}
	}
}

func bytesToSamples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
	}
	return out
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(uint16(s))
		out[2*i+1] = byte(uint16(s) >> 8)
	}
	return out
}

// resample converts between PCM rates with chunk-local linear interpolation.
// The boundary error between chunks is inaudible at speech rates.
func resample(in []int16, from, to int) []int16 {
	if from == to || len(in) == 0 {
		return in
	}
	n := len(in) * to / from
	out := make([]int16, n)
	for i := range out {
		pos := float64(i) * float64(from) / float64(to)
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(float64(in[j])*(1-frac) + float64(in[j+1])*frac)
	}
	return out
}
