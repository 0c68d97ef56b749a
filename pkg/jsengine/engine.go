// Package jsengine provides JavaScript evaluation and variable scoping for flows.
package jsengine

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

// DefaultSourceName is used for scripts that have no file behind them.
const DefaultSourceName = "inline-script"

// Bindings that survive env syncs and scope exits.
var permanentBindings = map[string]bool{
	"http":          true,
	"output":        true,
	"maestro":       true,
	"json":          true,
	"relativePoint": true,
	"console":       true,
}

const prelude = `
Object.setPrototypeOf(globalThis, new Proxy(Object.prototype, {
	has: function(target, key) { return true; }
}));
function json(text) {
	return JSON.parse(text);
}
function relativePoint(x, y) {
	var xPercent = Math.ceil(x * 100) + '%';
	var yPercent = Math.ceil(y * 100) + '%';
	return xPercent + ',' + yPercent;
}
`

// Engine wraps a goja runtime with flow env bindings and scope stacks.
// It is safe for concurrent use, although flows evaluate sequentially.
type Engine struct {
	mu sync.Mutex

	runtime *goja.Runtime
	evalFn  goja.Callable
	output  *goja.Object

	copiedText string
	platform   string

	env        map[string]string
	envGlobals map[string]bool
	envStack   []map[string]string
	frames     []map[string]goja.Value

	onLog      func(string)
	httpClient *http.Client
}

// New creates an engine for the given platform (android, ios, web).
func New(platform string) *Engine {
	e := &Engine{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	e.init(platform)
	return e
}

func (e *Engine) init(platform string) {
	e.runtime = goja.New()
	e.platform = platform
	e.copiedText = ""
	e.env = make(map[string]string)
	e.envGlobals = make(map[string]bool)
	e.envStack = nil
	e.frames = nil

	if _, err := e.runtime.RunString(prelude); err != nil {
		panic(fmt.Sprintf("jsengine prelude: %v", err))
	}
	wrapper, err := e.runtime.RunString(`(function(__script) { return eval(__script); })`)
	if err != nil {
		panic(fmt.Sprintf("jsengine wrapper: %v", err))
	}
	e.evalFn, _ = goja.AssertFunction(wrapper)

	e.output = e.runtime.NewObject()
	e.setupConsole()
	e.runtime.Set("output", e.output)
	e.runtime.Set("maestro", e.maestroObject())
	e.runtime.Set("http", e.httpModule())
}

// Reset discards all script state and starts a fresh runtime. The log
// subscriber is kept.
func (e *Engine) Reset(platform string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime.Interrupt("engine reset")
	e.init(platform)
}

// Close stops any running script.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime.Interrupt("engine closed")
}

// OnLogMessage subscribes to console output. Passing nil restores the
// default of logging at debug level.
func (e *Engine) OnLogMessage(fn func(string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onLog = fn
}

func (e *Engine) setupConsole() {
	write := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		line := strings.Join(parts, " ")
		if e.onLog != nil {
			e.onLog(line)
		} else {
			logger.Debug("JsConsole: %s", line)
		}
		return goja.Undefined()
	}

	console := e.runtime.NewObject()
	for _, name := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(name, write)
	}
	e.runtime.Set("console", console)
}

// maestroObject exposes read-only copiedText and platform.
func (e *Engine) maestroObject() *goja.Object {
	obj := e.runtime.NewObject()

	obj.DefineAccessorProperty("copiedText", e.runtime.ToValue(func() interface{} {
		if e.copiedText == "" {
			return nil
		}
		return e.copiedText
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	obj.DefineAccessorProperty("platform", e.runtime.ToValue(func() string {
		return e.platform
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	return obj
}

// PutEnv sets an env variable in the current env scope.
func (e *Engine) PutEnv(key, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.env[key] = value
}

// Env returns a copy of the current env bindings.
func (e *Engine) Env() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]string, len(e.env))
	for k, v := range e.env {
		out[k] = v
	}
	return out
}

// SetCopiedText sets maestro.copiedText.
func (e *Engine) SetCopiedText(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.copiedText = text
}

// CopiedText returns the current maestro.copiedText value.
func (e *Engine) CopiedText() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.copiedText
}

// Platform returns the platform the engine was created for.
func (e *Engine) Platform() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.platform
}

// Output returns a copy of the output object. The output object persists
// across scopes for the life of the runtime.
func (e *Engine) Output() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := make(map[string]interface{})
	if m, ok := e.output.Export().(map[string]interface{}); ok {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// EvaluateScript runs script with env merged into the env bindings. With
// runInSubScope the env additions are discarded afterwards.
// The result is the exported value of the last expression (nil for undefined).
func (e *Engine) EvaluateScript(script string, env map[string]string, sourceName string, runInSubScope bool) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if runInSubScope {
		e.enterEnvScope()
		defer e.leaveEnvScope()
	}
	for k, v := range env {
		e.env[k] = v
	}

	v, err := e.eval(script, sourceName)
	if err != nil {
		return nil, err
	}
	return v.Export(), nil
}

func (e *Engine) eval(script, sourceName string) (goja.Value, error) {
	if sourceName == "" {
		sourceName = DefaultSourceName
	}
	e.syncEnv()
	v, err := e.evalFn(goja.Undefined(), e.runtime.ToValue(script))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sourceName, err)
	}
	if v == nil {
		return goja.Undefined(), nil
	}
	return v, nil
}

// syncEnv mirrors the env map onto globals, removing stale env globals.
func (e *Engine) syncEnv() {
	global := e.runtime.GlobalObject()
	for k := range e.envGlobals {
		if _, ok := e.env[k]; !ok {
			global.Delete(k)
			delete(e.envGlobals, k)
		}
	}
	for k, v := range e.env {
		if permanentBindings[k] {
			continue
		}
		e.runtime.Set(k, v)
		e.envGlobals[k] = true
	}
}

// EvaluateScripts substitutes every ${expr} in text with the evaluated
// expression. A backslash before ${ keeps the expression literally.
func (e *Engine) EvaluateScripts(text string) (string, error) {
	if !strings.Contains(text, "${") {
		return text, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var b strings.Builder
	for i := 0; i < len(text); {
		escaped := strings.HasPrefix(text[i:], `\${`)
		if !escaped && !strings.HasPrefix(text[i:], "${") {
			b.WriteByte(text[i])
			i++
			continue
		}

		start := i + 2
		if escaped {
			start = i + 3
		}
		end := expressionEnd(text, start)
		if end < 0 {
			b.WriteString(text[i:start])
			i = start
			continue
		}

		if escaped {
			b.WriteString(text[i+1 : end+1])
		} else if script := text[start:end]; strings.TrimSpace(script) != "" {
			v, err := e.eval(script, DefaultSourceName)
			if err != nil {
				return "", err
			}
			b.WriteString(v.String())
		}
		i = end + 1
	}
	return b.String(), nil
}

// expressionEnd returns the index of the closing brace for an expression
// starting at start, or -1. Expressions may not contain '$'.
func expressionEnd(text string, start int) int {
	for j := start; j < len(text); j++ {
		switch text[j] {
		case '}':
			return j
		case '$':
			return -1
		}
	}
	return -1
}
