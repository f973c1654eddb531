package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/mattn/go-shellwords"
)

type execSynth struct {
	cmd        []string
	sampleRate int
	timeout    time.Duration
}

type execRequest struct {
	Text       string  `json:"text"`
	Voice      string  `json:"voice"`
	Language   string  `json:"language"`
	Speed      float64 `json:"speed"`
	SampleRate int     `json:"sample_rate"`
}

type execResponse struct {
	PCMBase64  string `json:"pcm_base64"`
	SampleRate int    `json:"sample_rate"`
	Error      string `json:"error,omitempty"`
}

// NewExecSynth runs an external worker command for every utterance. The
// worker reads one JSON request on stdin and writes one JSON response with
// base64 16-bit little-endian PCM on stdout.
func NewExecSynth(command string, sampleRate int, timeout time.Duration) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synth command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synth command empty")
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &execSynth{cmd: args, sampleRate: sampleRate, timeout: timeout}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, text string, p Params) (*Clip, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := json.Marshal(execRequest{
		Text:       text,
		Voice:      p.Voice,
		Language:   p.Language,
		Speed:      p.Speed,
		SampleRate: e.sampleRate,
	})
	if err != nil {
		return nil, err
	}

	command := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	command.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("synth command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode synth response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedText, resp.Error)
	}

	pcm, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
	if err != nil {
		return nil, fmt.Errorf("decode synth pcm: %w", err)
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("synth pcm payload not aligned")
	}

	rate := resp.SampleRate
	if rate == 0 {
		rate = e.sampleRate
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}
	return &Clip{Samples: samples, SampleRate: rate}, nil
}
