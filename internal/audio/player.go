package audio

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"lingua/internal/playback"
)

// FFPlaySink plays decoded PCM buffers through an ffplay subprocess. The rate
// multiplier is applied by raising the declared sample rate, which shortens
// duration without pitch correction.
type FFPlaySink struct {
	command    string
	sampleRate int
	log        *zap.Logger
}

func NewFFPlaySink(command string, sampleRate int, log *zap.Logger) *FFPlaySink {
	if command == "" {
		command = "ffplay"
	}
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FFPlaySink{command: command, sampleRate: sampleRate, log: log}
}

func (p *FFPlaySink) Play(samples []float32, rate float64) (playback.Voice, error) {
	if rate <= 0 {
		rate = 1.0
	}
	outRate := int(float64(p.sampleRate) * rate)

	cmd := exec.Command(p.command,
		"-autoexit",
		"-nodisp",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(outRate),
		"-i", "-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("player stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start player: %w", err)
	}

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	pcm := EncodePCM16(samples)
	go func(w io.WriteCloser) {
		_, writeErr := w.Write(pcm)
		if writeErr != nil {
			p.log.Debug("playback write interrupted", zap.Error(writeErr))
		}
		_ = w.Close()
	}(stdin)

	return &ffplayVoice{process: cmd.Process, done: done}, nil
}

type ffplayVoice struct {
	process  *os.Process
	done     chan struct{}
	stopOnce sync.Once
}

func (v *ffplayVoice) Stop() {
	v.stopOnce.Do(func() {
		select {
		case <-v.done:
		default:
			_ = v.process.Kill()
		}
		<-v.done
	})
}
