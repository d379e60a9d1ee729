//go:build unix

package gzpipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/robert-malhotra/go-affy/internal/decode"
)

const pipeSupported = true

// pipeReader reads the output of an external decompressor through a named
// pipe in a private temporary directory.
type pipeReader struct {
	ctx    context.Context
	path   string
	name   string
	f      *os.File
	cmd    *exec.Cmd
	dir    string
	stderr bytes.Buffer
	log    *slog.Logger

	eof    bool
	closed bool
}

func openPipe(ctx context.Context, path, command string, log *slog.Logger) (rc io.ReadCloser, err error) {
	dir, err := os.MkdirTemp("", "affy-gunzip-")
	if err != nil {
		return nil, &decode.ResourceError{Path: path, Op: "creating pipe directory", Err: err}
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	fifo := filepath.Join(dir, "stream")
	if err := unix.Mkfifo(fifo, 0o600); err != nil {
		return nil, &decode.ResourceError{Path: path, Op: "creating named pipe", Err: err}
	}

	// Opening the read end without O_NONBLOCK would block until a writer
	// appears; the write end is opened here and handed to the helper.
	r, err := os.OpenFile(fifo, os.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, &decode.ResourceError{Path: path, Op: "opening named pipe", Err: err}
	}
	w, err := os.OpenFile(fifo, os.O_WRONLY, 0)
	if err != nil {
		r.Close()
		return nil, &decode.ResourceError{Path: path, Op: "opening named pipe", Err: err}
	}

	p := &pipeReader{ctx: ctx, path: path, name: command, f: r, dir: dir, log: log}
	p.cmd = exec.CommandContext(ctx, command, "-c", path)
	p.cmd.Stdout = w
	p.cmd.Stderr = &p.stderr
	startErr := p.cmd.Start()
	// The helper holds its own copy of the write end.
	w.Close()
	if startErr != nil {
		r.Close()
		return nil, &decode.ResourceError{Path: path, Op: "starting " + command, Err: startErr}
	}

	log.Debug("started decompression helper",
		slog.String("command", command),
		slog.Int("pid", p.cmd.Process.Pid),
		slog.String("pipe", fifo))
	return p, nil
}

func (p *pipeReader) Read(b []byte) (int, error) {
	n, err := p.f.Read(b)
	if errors.Is(err, io.EOF) {
		p.eof = true
	}
	return n, err
}

// Close stops the helper if it is still running, reaps it and removes the
// pipe. A helper failure is reported only if the stream was read to its
// end, since an early Close kills the helper.
func (p *pipeReader) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	if !p.eof {
		_ = p.cmd.Process.Kill()
	}
	if err := p.f.Close(); err != nil {
		errs = append(errs, &decode.ResourceError{Path: p.path, Op: "closing named pipe", Err: err})
	}
	waitErr := p.cmd.Wait()
	switch {
	case p.ctx.Err() != nil && waitErr != nil:
		errs = append(errs, &decode.ResourceError{Path: p.path, Op: "running " + p.name, Err: p.ctx.Err()})
	case p.eof && waitErr != nil:
		msg := strings.TrimSpace(p.stderr.String())
		errs = append(errs, &decode.ResourceError{Path: p.path, Op: "running " + p.name, Err: fmt.Errorf("%w: %s", waitErr, msg)})
	}
	if err := os.RemoveAll(p.dir); err != nil {
		errs = append(errs, &decode.ResourceError{Path: p.path, Op: "removing named pipe", Err: err})
	}
	p.log.Debug("stopped decompression helper",
		slog.String("command", p.name),
		slog.Bool("complete", p.eof),
		slog.Any("exit", waitErr))
	return errors.Join(errs...)
}
