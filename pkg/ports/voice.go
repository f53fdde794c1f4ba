package ports

import "context"

// Transcript is one speech-to-text result.
type Transcript struct {
	Text  string
	Final bool
}

// Transcriber is the realtime STT boundary. It accepts 16-bit little-endian
// mono PCM and emits interim and final transcripts.
type Transcriber interface {
	Connect(ctx context.Context) error
	SendPCM(pcm []byte) error
	Transcripts() <-chan Transcript
	Close() error
}

// Synthesizer is the TTS boundary. Synthesize streams 16-bit little-endian
// mono PCM at SampleRate; the audio channel is closed when synthesis ends,
// and at most one error is delivered on the error channel.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (<-chan []byte, <-chan error)
	SampleRate() int
}
