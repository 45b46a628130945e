package cliexec

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	gwerrors "github.com/polydev-ai/polygate/pkg/errors"
	"github.com/polydev-ai/polygate/pkg/types"
)

const (
	statusCacheTTL = 5 * time.Minute
	defaultTimeout = 60 * time.Second
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)
var excessNewlines = regexp.MustCompile(`\n{3,}`)

// Status reports whether a tool can serve requests.
type Status struct {
	Tool          string
	Available     bool
	Authenticated bool
	Version       string
	Error         string
}

// Result is one completed CLI invocation.
type Result struct {
	Content         string
	TokensEstimated int
	Latency         time.Duration
}

// Runner invokes CLI tools with probe caching.
type Runner struct {
	logger   *slog.Logger
	cache    *gocache.Cache
	disabled map[string]bool

	lookPath func(string) (string, error)
	run      func(ctx context.Context, command string, args ...string) (stdout, stderr []byte, err error)
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:   logger,
		cache:    gocache.New(statusCacheTTL, 10*time.Minute),
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

// NewRunnerWithExec builds a runner with custom process hooks. Callers that
// need to fake tool binaries swap in their own lookPath and run functions.
func NewRunnerWithExec(logger *slog.Logger, lookPath func(string) (string, error), run func(ctx context.Context, command string, args ...string) ([]byte, []byte, error)) *Runner {
	r := NewRunner(logger)
	if lookPath != nil {
		r.lookPath = lookPath
	}
	if run != nil {
		r.run = run
	}
	return r
}

func runCommand(ctx context.Context, command string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = append(os.Environ(), "NO_COLOR=1", "CI=1", "TERM=dumb")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// SetDisabled excludes tools from routing by id. Disabled tools report as
// unavailable without being probed.
func (r *Runner) SetDisabled(ids []string) {
	r.disabled = make(map[string]bool, len(ids))
	for _, id := range ids {
		r.disabled[strings.ToLower(id)] = true
	}
}

// Status probes one tool. Results are cached for five minutes so the
// per-request fallback walk never pays a process spawn just to learn the
// tool is missing.
func (r *Runner) Status(ctx context.Context, tool Tool) Status {
	if r.disabled[tool.ID] {
		return Status{Tool: tool.ID, Error: "disabled by configuration"}
	}
	if cached, ok := r.cache.Get(tool.ID); ok {
		return cached.(Status)
	}
	status := r.probe(ctx, tool)
	r.cache.Set(tool.ID, status, statusCacheTTL)
	return status
}

func (r *Runner) probe(ctx context.Context, tool Tool) Status {
	status := Status{Tool: tool.ID}
	if _, err := r.lookPath(tool.Command); err != nil {
		status.Error = fmt.Sprintf("%s not installed", tool.Command)
		return status
	}
	status.Available = true

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	stdout, stderr, err := r.run(probeCtx, tool.Command, "--version")
	if err != nil {
		status.Error = strings.TrimSpace(string(stderr))
		if status.Error == "" {
			status.Error = err.Error()
		}
		return status
	}
	status.Authenticated = true
	status.Version = strings.TrimSpace(string(stdout))
	return status
}

// InvalidateStatus drops a cached probe, forcing the next Status call to
// re-probe. Used after an execution failure that suggests auth changed.
func (r *Runner) InvalidateStatus(toolID string) {
	r.cache.Delete(toolID)
}

// Execute runs one prompt through a tool. The model is passed through
// untranslated; CLI tools accept provider-native names.
func (r *Runner) Execute(ctx context.Context, tool Tool, prompt, model string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, err := r.run(runCtx, tool.Command, tool.Args(prompt, model)...)
	latency := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return nil, gwerrors.NewTimeoutError(tool.ID, model,
			fmt.Sprintf("%s timed out after %s", tool.Command, timeout))
	}
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		r.logger.Warn("cli execution failed",
			"tool", tool.ID,
			"model", model,
			"error", msg,
		)
		return nil, gwerrors.NewUpstreamError(tool.ID, model, 502, msg)
	}

	content := cleanOutput(string(stdout))
	return &Result{
		Content:         content,
		TokensEstimated: (len(prompt) + len(content) + 3) / 4,
		Latency:         latency,
	}, nil
}

// ExecuteChat adapts a chat request to a single-prompt invocation and wraps
// the output in the unified response shape.
func (r *Runner) ExecuteChat(ctx context.Context, tool Tool, req *types.ChatRequest, model string, timeout time.Duration) (*types.ChatResponse, error) {
	prompt := flattenMessages(req.Messages)
	res, err := r.Execute(ctx, tool, prompt, model, timeout)
	if err != nil {
		return nil, err
	}
	return &types.ChatResponse{
		Model: model,
		Choices: []types.Choice{{
			Message:      types.NewTextMessage("assistant", res.Content),
			FinishReason: "stop",
		}},
		Usage: &types.Usage{
			CompletionTokens: res.TokensEstimated,
			TotalTokens:      res.TokensEstimated,
		},
	}, nil
}

// flattenMessages renders a message history as one prompt, since the tools
// take a single -p string rather than structured turns.
func flattenMessages(messages []types.ChatMessage) string {
	var b strings.Builder
	for _, msg := range messages {
		text := msg.Text()
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		switch msg.Role {
		case "user", "":
			b.WriteString(text)
		default:
			b.WriteString(msg.Role)
			b.WriteString(": ")
			b.WriteString(text)
		}
	}
	return b.String()
}

func cleanOutput(out string) string {
	out = ansiEscape.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "\r\n", "\n")
	out = excessNewlines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
