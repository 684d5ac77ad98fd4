package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"modelgate/internal/common/fsutil"
	"modelgate/internal/config"
)

// ExecConfig configures ExecLauncher.
type ExecConfig struct {
	// Bin is the worker executable. Empty means the running binary, which
	// must then provide the "worker" subcommand.
	Bin        string
	Host       string
	Backend    string
	ExtraArgs  []string
	Generation config.GenerationDefaults
	Logger     zerolog.Logger
}

// ExecLauncher spawns one OS process per model:
//
//	<bin> worker --model <path> --port <port> --host <host> --backend <b> --launch-id <id> ...
type ExecLauncher struct {
	cfg ExecConfig
}

func NewExecLauncher(cfg ExecConfig) *ExecLauncher {
	if cfg.Host == "" {
		cfg.Host = config.DefaultWorkerHost
	}
	return &ExecLauncher{cfg: cfg}
}

// Args returns the worker command line (without the binary) for a model.
func (l *ExecLauncher) Args(spec config.ModelSpec, modelPath, launchID string) []string {
	g := l.cfg.Generation
	args := []string{
		"worker",
		"--model", modelPath,
		"--name", spec.Name,
		"--port", strconv.Itoa(spec.Port),
		"--host", l.cfg.Host,
		"--launch-id", launchID,
	}
	if l.cfg.Backend != "" {
		args = append(args, "--backend", l.cfg.Backend)
	}
	// Every resolved default is forwarded; 0 and negative values are meaningful.
	args = append(args,
		"--temperature="+strconv.FormatFloat(g.EffectiveTemperature(), 'g', -1, 64),
		"--top-p="+strconv.FormatFloat(g.TopP, 'g', -1, 64),
		"--max-tokens="+strconv.Itoa(g.MaxTokens),
		"--repeat-penalty="+strconv.FormatFloat(g.RepeatPenalty, 'g', -1, 64),
		"--ctx-size="+strconv.Itoa(g.CtxSize),
		"--gpu-layers="+strconv.Itoa(g.GPULayers),
		"--threads="+strconv.Itoa(g.Threads),
	)
	return append(args, l.cfg.ExtraArgs...)
}

// Launch checks the model file, starts the worker and returns immediately.
// The child is not bound to ctx: it lives until Terminate.
func (l *ExecLauncher) Launch(ctx context.Context, spec config.ModelSpec, launchID string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	modelPath, err := fsutil.ResolveFile(spec.Path)
	if err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}
	bin := l.cfg.Bin
	if bin == "" {
		if bin, err = os.Executable(); err != nil {
			return nil, fmt.Errorf("resolve worker binary: %w", err)
		}
	}
	log := l.cfg.Logger.With().Str("model", spec.Name).Str("launch_id", launchID).Logger()
	stdout := newLineLogger(log, "stdout")
	stderr := newLineLogger(log, "stderr")
	tail := &tailBuffer{max: stderrTailBytes}

	cmd := exec.Command(bin, l.Args(spec, modelPath, launchID)...)
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, tail)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}
	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		werr := cmd.Wait()
		stdout.Flush()
		stderr.Flush()
		if werr != nil {
			if t := tail.String(); t != "" {
				werr = fmt.Errorf("%w; stderr tail: %s", werr, t)
			}
		} else {
			werr = errors.New("exited with status 0")
		}
		p.err = werr
		close(p.done)
		log.Debug().Err(werr).Int("pid", p.PID()).Msg("worker exited")
	}()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error // written before done is closed
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Terminate sends SIGTERM. The reaper goroutine started by Launch collects
// the exit status; nothing here waits for it.
func (p *execProcess) Terminate() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

const stderrTailBytes = 4096

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = append([]byte(nil), t.buf[len(t.buf)-t.max:]...)
	}
	t.mu.Unlock()
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
