// Package tools exposes the mailbox to an agent as a fixed allowlist of
// JSON tools. Every call returns a Result; nothing is thrown past Dispatch.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nhle/agentmail-skill/internal/model"
	"github.com/nhle/agentmail-skill/internal/safety"
	"github.com/nhle/agentmail-skill/internal/source"
)

// Tool names in allowlist order.
const (
	ListThreads              = "list_threads"
	GetThread                = "get_thread"
	GetMessage               = "get_message"
	ExtractVerificationCodes = "extract_verification_codes"
	SendEmail                = "send_email"
	ReplyEmail               = "reply_email"
)

// Allowlist is the complete set of tools, in the order they are advertised.
var Allowlist = []string{
	ListThreads,
	GetThread,
	GetMessage,
	ExtractVerificationCodes,
	SendEmail,
	ReplyEmail,
}

const maxLoggedToolName = 64

// Definition describes a tool to the agent.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// Auditor records tool invocations.
type Auditor interface {
	RecordInvocation(ctx context.Context, inv model.Invocation) error
}

type handlerFunc func(ctx context.Context, input json.RawMessage) (any, error)

type tool struct {
	def    Definition
	handle handlerFunc
}

// Registry dispatches tool calls against a mailbox.
type Registry struct {
	mailbox source.Mailbox
	auditor Auditor
	logger  *slog.Logger
	now     func() time.Time
	tools   map[string]tool
}

// Option configures a Registry.
type Option func(*Registry)

// WithAuditor records every call through a.
func WithAuditor(a Auditor) Option {
	return func(r *Registry) {
		r.auditor = a
	}
}

// WithLogger sets the logger used for per-call diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry builds the registry for mailbox.
func NewRegistry(mailbox source.Mailbox, opts ...Option) *Registry {
	r := &Registry{
		mailbox: mailbox,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	h := &handlers{mailbox: mailbox}
	r.tools = map[string]tool{
		ListThreads:              {def: listThreadsDef, handle: h.listThreads},
		GetThread:                {def: getThreadDef, handle: h.getThread},
		GetMessage:               {def: getMessageDef, handle: h.getMessage},
		ExtractVerificationCodes: {def: extractCodesDef, handle: h.extractCodes},
		SendEmail:                {def: sendEmailDef, handle: h.sendEmail},
		ReplyEmail:               {def: replyEmailDef, handle: h.replyEmail},
	}
	return r
}

// Definitions returns the tool definitions in allowlist order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(Allowlist))
	for _, name := range Allowlist {
		defs = append(defs, r.tools[name].def)
	}
	return defs
}

// Dispatch runs the named tool. It never panics and never returns an
// error: every failure is folded into the Result.
func (r *Registry) Dispatch(ctx context.Context, name string, input json.RawMessage) Result {
	start := r.now()

	var res Result
	t, ok := r.tools[name]
	if !ok {
		res = Failure(fmt.Errorf("Unknown tool %q. Allowed: %s", name, strings.Join(Allowlist, ", ")))
	} else {
		res = r.run(ctx, t, input)
	}

	r.observe(ctx, name, res, start, r.now().Sub(start))
	return res
}

func (r *Registry) run(ctx context.Context, t tool, input json.RawMessage) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool panicked", "tool", t.def.Name, "panic", fmt.Sprint(p))
			res = Failure(fmt.Errorf("internal error in %s", t.def.Name))
		}
	}()

	v, err := t.handle(ctx, input)
	if err != nil {
		return Failure(err)
	}
	return Success(v)
}

func (r *Registry) observe(ctx context.Context, name string, res Result, start time.Time, elapsed time.Duration) {
	logged := name
	if len(logged) > maxLoggedToolName {
		logged = logged[:maxLoggedToolName]
	}

	errText := safety.RedactSecrets(res.Error)
	if res.OK {
		r.logger.Info("tool call", "tool", logged, "ok", true, "duration", elapsed)
	} else {
		r.logger.Warn("tool call", "tool", logged, "ok", false, "duration", elapsed, "error", errText)
	}

	if r.auditor == nil {
		return
	}
	inv := model.Invocation{
		Tool:      logged,
		OK:        res.OK,
		Error:     errText,
		Duration:  elapsed,
		CreatedAt: start.UTC(),
	}
	if err := r.auditor.RecordInvocation(context.WithoutCancel(ctx), inv); err != nil {
		r.logger.Warn("recording tool call", "tool", logged, "error", err)
	}
}
