package forecast

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"github.com/couchcryptid/forecast-collector/internal/domain"
)

// Request describes one model run.
type Request struct {
	Model      Model
	OutputPath string
	Date       string // YYYYMMDD
	Time       int    // base hour, 0-23
	LeadTime   int    // hours
}

// Validate checks the request before any process is started.
func (r Request) Validate() error {
	if _, err := domain.ParseDate(r.Date); err != nil {
		return err
	}
	if r.Time < 0 || r.Time > 23 {
		return fmt.Errorf("invalid base time %d: want an hour in 0-23", r.Time)
	}
	if r.LeadTime <= 0 {
		return fmt.Errorf("invalid lead time %d: must be positive", r.LeadTime)
	}
	if r.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	return nil
}

// CommandRunner executes the forecast model as an external process.
type CommandRunner struct {
	binary string
	args   []string
	logger *slog.Logger
}

// NewCommandRunner creates a runner for binary. args are prepended to every
// invocation, e.g. the input source.
func NewCommandRunner(binary string, args []string, logger *slog.Logger) *CommandRunner {
	return &CommandRunner{binary: binary, args: args, logger: logger}
}

// Execute runs the model and waits for it to exit. The process is killed if
// ctx is cancelled. A clean exit does not guarantee the output file exists.
func (r *CommandRunner) Execute(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	argv := r.argv(req)
	cmd := exec.CommandContext(ctx, r.binary, argv...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("model runner stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("model runner stderr: %w", err)
	}

	r.logger.Info("model run starting", "model", req.Model.Name, "runner", r.binary, "args", argv)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start model runner %s: %w", r.binary, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go r.pipeLog(&wg, stdout, "stdout")
	go r.pipeLog(&wg, stderr, "stderr")
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("model runner %s: %w", req.Model.Name, ctx.Err())
		}
		return fmt.Errorf("model runner %s: %w", req.Model.Name, err)
	}
	r.logger.Info("model run finished", "model", req.Model.Name, "output", req.OutputPath)
	return nil
}

func (r *CommandRunner) argv(req Request) []string {
	argv := make([]string, 0, len(r.args)+len(req.Model.Args)+9)
	argv = append(argv, r.args...)
	argv = append(argv,
		"--date", req.Date,
		"--time", fmt.Sprintf("%02d00", req.Time),
		"--lead-time", strconv.Itoa(req.LeadTime),
		"--path", req.OutputPath,
	)
	argv = append(argv, req.Model.Args...)
	return append(argv, req.Model.RunnerModel)
}

func (r *CommandRunner) pipeLog(wg *sync.WaitGroup, rd io.Reader, stream string) {
	defer wg.Done()
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		r.logger.Debug("model runner output", "stream", stream, "line", sc.Text())
	}
}
