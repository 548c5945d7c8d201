package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rtm0/marineclim/internal/apperr"
	"github.com/rtm0/marineclim/internal/config"
)

// DefaultBinary is the data service command line client.
const DefaultBinary = "copernicusmarine"

// Runner runs an external command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args, env []string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. env is appended to the current environment.
func (ExecRunner) Run(ctx context.Context, name string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

// Client downloads subsets through the data service client.
type Client struct {
	logger *slog.Logger
	binary string
	creds  config.Credentials
	runner Runner
}

// NewClient creates a new fetch client. Credentials are passed to the child
// process through its environment, never on the command line.
func NewClient(logger *slog.Logger, binary string, creds config.Credentials, runner Runner) *Client {
	if binary == "" {
		binary = DefaultBinary
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Client{logger: logger, binary: binary, creds: creds, runner: runner}
}

var authFailureRE = regexp.MustCompile(`(?i)(invalid (username|credentials)|incorrect (username|password)|unauthori[sz]ed|\b401\b|authentication failed|login failed)`)

// Subset downloads req and returns the path of the written file.
func (c *Client) Subset(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}
	if req.OutputDirectory != "" {
		if err := os.MkdirAll(req.OutputDirectory, 0o755); err != nil {
			return "", apperr.NewIO(req.OutputDirectory, err)
		}
	}
	env := []string{
		"COPERNICUSMARINE_SERVICE_USERNAME=" + c.creds.Username,
		"COPERNICUSMARINE_SERVICE_PASSWORD=" + c.creds.Password,
	}
	prev, _ := os.Stat(req.OutputPath())
	c.logger.Info("Requesting subset", "dataset", req.DatasetID, "variables", req.Variables,
		"bbox", req.BBox.String(), "output", req.OutputPath())

	out, err := c.runner.Run(ctx, c.binary, req.Args(), env)
	if err != nil {
		msg := lastLines(out, 5)
		if errors.Is(err, exec.ErrNotFound) {
			return "", apperr.NewIO(c.binary, fmt.Errorf("data service client not installed: %w", err))
		}
		if authFailureRE.Match(out) {
			return "", apperr.NewAuth(fmt.Errorf("%s: %w", msg, err))
		}
		return "", apperr.NewIO(req.OutputPath(), fmt.Errorf("subset %s: %s: %w", req.DatasetID, msg, err))
	}
	info, err := os.Stat(req.OutputPath())
	if err != nil {
		return "", apperr.NewIO(req.OutputPath(), fmt.Errorf("subset finished without writing output: %w", err))
	}
	if prev != nil && unchanged(prev, info) {
		return "", apperr.NewIO(req.OutputPath(), errors.New("subset finished without rewriting the existing output; "+
			"the service may have written a renamed copy"))
	}
	c.logger.Info("Subset written", "path", req.OutputPath())
	return req.OutputPath(), nil
}

func unchanged(a, b os.FileInfo) bool {
	return os.SameFile(a, b) && a.ModTime().Equal(b.ModTime()) && a.Size() == b.Size()
}

func lastLines(out []byte, n int) string {
	lines := strings.Split(strings.TrimSpace(string(bytes.ReplaceAll(out, []byte("\r"), nil))), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
