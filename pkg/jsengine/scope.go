package jsengine

import "github.com/dop251/goja"

// EnterScope opens a lexical frame. Globals that scripts create or change
// until the matching LeaveScope are rolled back on leave.
func (e *Engine) EnterScope() {
	e.mu.Lock()
	defer e.mu.Unlock()

	global := e.runtime.GlobalObject()
	snapshot := make(map[string]goja.Value)
	for _, k := range global.Keys() {
		if permanentBindings[k] {
			continue
		}
		snapshot[k] = global.Get(k)
	}
	e.frames = append(e.frames, snapshot)
}

// LeaveScope closes the innermost lexical frame. Unbalanced calls are ignored.
func (e *Engine) LeaveScope() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.frames) == 0 {
		return
	}
	snapshot := e.frames[len(e.frames)-1]
	e.frames = e.frames[:len(e.frames)-1]

	global := e.runtime.GlobalObject()
	for _, k := range global.Keys() {
		if permanentBindings[k] {
			continue
		}
		if _, ok := snapshot[k]; !ok {
			global.Delete(k)
		}
	}
	for k, v := range snapshot {
		global.Set(k, v)
	}
}

// ScopeDepth reports the number of open lexical frames.
func (e *Engine) ScopeDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frames)
}

// EnterEnvScope saves the env bindings so a sub-flow can extend or
// override them.
func (e *Engine) EnterEnvScope() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enterEnvScope()
}

// LeaveEnvScope restores the env bindings saved by the matching
// EnterEnvScope. Unbalanced calls are ignored.
func (e *Engine) LeaveEnvScope() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.leaveEnvScope()
}

// EnvScopeDepth reports the number of saved env scopes.
func (e *Engine) EnvScopeDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.envStack)
}

func (e *Engine) enterEnvScope() {
	saved := make(map[string]string, len(e.env))
	for k, v := range e.env {
		saved[k] = v
	}
	e.envStack = append(e.envStack, saved)
}

func (e *Engine) leaveEnvScope() {
	if len(e.envStack) == 0 {
		return
	}
	e.env = e.envStack[len(e.envStack)-1]
	e.envStack = e.envStack[:len(e.envStack)-1]
}
