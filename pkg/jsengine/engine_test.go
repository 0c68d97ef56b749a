package jsengine

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	engine := New("android")
	defer engine.Close()

	if engine.runtime == nil {
		t.Fatal("expected runtime to be initialized")
	}
	if engine.Platform() != "android" {
		t.Errorf("Platform() = %q, want android", engine.Platform())
	}
}

func TestEvaluateScript(t *testing.T) {
	engine := New("android")
	defer engine.Close()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
		{"last expression", "var a = 2; a * 5", int64(10)},
		{"undeclared is undefined", "typeof notDefinedAnywhere", "undefined"},
		{"arrow function", "[1, 2].map(x => x * 2).join(',')", "2,4"},
		{"template literal", "`a${1 + 1}b`", "a2b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.EvaluateScript(tt.script, nil, "", false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestEvaluateScript_Error(t *testing.T) {
	engine := New("ios")
	defer engine.Close()

	_, err := engine.EvaluateScript("invalid javascript {{{{", nil, "setup.js", false)
	if err == nil {
		t.Fatal("expected error for invalid javascript")
	}
	if !strings.Contains(err.Error(), "setup.js") {
		t.Errorf("error %q should name the source", err)
	}

	if _, err := engine.EvaluateScript("undefinedVariable.property", nil, "", false); err == nil {
		t.Error("expected error reading a property of undefined")
	}
}

func TestEvaluateScripts(t *testing.T) {
	engine := New("android")
	defer engine.Close()
	engine.PutEnv("NAME", "Alice")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no expressions", "plain text", "plain text"},
		{"arithmetic", "${1 + 1}", "2"},
		{"env variable", "Hello ${NAME}!", "Hello Alice!"},
		{"multiple", "${NAME}-${NAME.length}", "Alice-5"},
		{"escaped", `\${NAME}`, "${NAME}"},
		{"escaped next to evaluated", `\${NAME} ${NAME}`, "${NAME} Alice"},
		{"blank expression", "a${ }b", "ab"},
		{"unterminated", "${NAME", "${NAME"},
		{"undefined value", "${notSet}", "undefined"},
		{"default value", "${notSet || 'guest'}", "guest"},
		{"float", "${1.5 * 2}", "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.EvaluateScripts(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("EvaluateScripts(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestEvaluateScripts_Error(t *testing.T) {
	engine := New("android")
	defer engine.Close()

	if _, err := engine.EvaluateScripts("Value: ${)(}"); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestScope_RollsBackGlobals(t *testing.T) {
	engine := New("android")
	defer engine.Close()

	if _, err := engine.EvaluateScript("counter = 1", nil, "", false); err != nil {
		t.Fatal(err)
	}

	engine.EnterScope()
	if _, err := engine.EvaluateScript("counter = 2; created = 'inner'", nil, "", false); err != nil {
		t.Fatal(err)
	}
	if got, _ := engine.EvaluateScript("counter", nil, "", false); got != int64(2) {
		t.Errorf("counter inside scope = %v, want 2", got)
	}
	engine.LeaveScope()

	if got, _ := engine.EvaluateScript("counter", nil, "", false); got != int64(1) {
		t.Errorf("counter after leave = %v, want 1", got)
	}
	if got, _ := engine.EvaluateScript("typeof created", nil, "", false); got != "undefined" {
		t.Errorf("typeof created after leave = %v, want undefined", got)
	}
	if engine.ScopeDepth() != 0 {
		t.Errorf("ScopeDepth() = %d, want 0", engine.ScopeDepth())
	}

	// Unbalanced leave is a no-op.
	engine.LeaveScope()
}

func TestEnvScope(t *testing.T) {
	engine := New("android")
	defer engine.Close()

	engine.PutEnv("A", "outer")
	engine.EnterEnvScope()
	engine.PutEnv("A", "inner")
	engine.PutEnv("B", "only-inner")

	if got, _ := engine.EvaluateScripts("${A}/${B}"); got != "inner/only-inner" {
		t.Errorf("inside env scope = %q, want inner/only-inner", got)
	}

	engine.LeaveEnvScope()

	if got, _ := engine.EvaluateScripts("${A}/${typeof B}"); got != "outer/undefined" {
		t.Errorf("after env scope = %q, want outer/undefined", got)
	}
	if engine.EnvScopeDepth() != 0 {
		t.Errorf("EnvScopeDepth() = %d, want 0", engine.EnvScopeDepth())
	}
}

func TestEvaluateScript_SubScope(t *testing.T) {
	engine := New("android")
	defer engine.Close()
	engine.PutEnv("KEEP", "1")

	got, err := engine.EvaluateScript("KEEP + TEMP", map[string]string{"TEMP": "2"}, "", true)
	if err != nil {
		t.Fatal(err)
	}
	if got != "12" {
		t.Errorf("result = %v, want 12", got)
	}
	if _, ok := engine.Env()["TEMP"]; ok {
		t.Error("sub-scope env leaked into the outer scope")
	}

	if _, err := engine.EvaluateScript("1", map[string]string{"PERSIST": "yes"}, "", false); err != nil {
		t.Fatal(err)
	}
	if engine.Env()["PERSIST"] != "yes" {
		t.Error("env outside a sub-scope should persist")
	}
}

func TestOutputPersistsAcrossScopes(t *testing.T) {
	engine := New("android")
	defer engine.Close()

	engine.EnterScope()
	engine.EnterEnvScope()
	if _, err := engine.EvaluateScript("output.token = 'abc'; output.count = 5", nil, "", false); err != nil {
		t.Fatal(err)
	}
	engine.LeaveEnvScope()
	engine.LeaveScope()

	out := engine.Output()
	if out["token"] != "abc" || out["count"] != int64(5) {
		t.Errorf("Output() = %v", out)
	}
	if got, _ := engine.EvaluateScripts("${output.token}"); got != "abc" {
		t.Errorf("output.token = %q, want abc", got)
	}
}

func TestMaestroObject(t *testing.T) {
	engine := New("ios")
	defer engine.Close()

	if got, _ := engine.EvaluateScripts("${maestro.copiedText}"); got != "null" {
		t.Errorf("copiedText before copy = %q, want null", got)
	}

	engine.SetCopiedText("copied!")
	if got, _ := engine.EvaluateScripts("${maestro.copiedText}|${maestro.platform}"); got != "copied!|ios" {
		t.Errorf("maestro object = %q, want copied!|ios", got)
	}
}

func TestConsole_RoutesToSubscriber(t *testing.T) {
	engine := New("android")
	defer engine.Close()

	var lines []string
	engine.OnLogMessage(func(line string) { lines = append(lines, line) })

	if _, err := engine.EvaluateScript("console.log('hello', 42); console.error('bad')", nil, "", false); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[0] != "hello 42" || lines[1] != "bad" {
		t.Errorf("log lines = %q", lines)
	}

	engine.OnLogMessage(nil)
	if _, err := engine.EvaluateScript("console.log('dropped')", nil, "", false); err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Error("unsubscribed callback still received output")
	}
}

func TestReset(t *testing.T) {
	engine := New("android")
	defer engine.Close()

	var lines []string
	engine.OnLogMessage(func(line string) { lines = append(lines, line) })
	engine.PutEnv("A", "1")
	engine.SetCopiedText("x")
	engine.EvaluateScript("output.v = 1", nil, "", false)
	engine.EnterScope()

	engine.Reset("ios")

	if len(engine.Env()) != 0 || len(engine.Output()) != 0 || engine.CopiedText() != "" {
		t.Error("Reset() should clear env, output and copied text")
	}
	if engine.ScopeDepth() != 0 || engine.Platform() != "ios" {
		t.Errorf("Reset() depth=%d platform=%q", engine.ScopeDepth(), engine.Platform())
	}
	engine.EvaluateScript("console.log('after')", nil, "", false)
	if len(lines) != 1 || lines[0] != "after" {
		t.Errorf("log subscriber lost after Reset(): %q", lines)
	}
}

func TestHelpers(t *testing.T) {
	engine := New("android")
	defer engine.Close()

	tests := []struct {
		script   string
		expected interface{}
	}{
		{`json('{"a": 1}').a`, int64(1)},
		{"relativePoint(0.5, 0.25)", "50%,25%"},
		{"typeof http.get", "function"},
		{"typeof http.post", "function"},
	}

	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			result, err := engine.EvaluateScript(tt.script, nil, "", false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestHTTPModule(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"method": %q, "auth": %q}`, r.Method, r.Header.Get("Authorization"))
	}))
	defer server.Close()

	engine := New("android")
	defer engine.Close()
	engine.PutEnv("URL", server.URL)

	script := `
		var res = http.post(URL, {headers: {Authorization: 'token'}, body: {a: 1}});
		res.status + ' ' + res.ok + ' ' + res.json.method + ' ' + res.json.auth
	`
	result, err := engine.EvaluateScript(script, nil, "", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "200 true POST token" {
		t.Errorf("result = %v, want 200 true POST token", result)
	}
}

func TestHTTPModule_RequestAndErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(w, "%s %s %s", r.Method, r.Header.Get("Content-Type"), body)
	}))
	defer server.Close()

	engine := New("android")
	defer engine.Close()
	engine.PutEnv("URL", server.URL)

	tests := []struct {
		script string
		want   interface{}
	}{
		{`http.request('put', URL, {body: 'raw'}).body`, "PUT  raw"},
		{`http.post(URL, {body: {a: 1}}).body`, `POST application/json {"a":1}`},
		{`var r = http.get(URL + '/missing'); r.status + ' ' + r.ok + ' ' + r.json`, "404 false null"},
		{`try { http.get('http://127.0.0.1:1/') ; 'no error' } catch (e) { 'caught' }`, "caught"},
	}
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			result, err := engine.EvaluateScript(tt.script, nil, "", false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.want {
				t.Errorf("result = %v, want %v", result, tt.want)
			}
		})
	}
}

func TestDecodeHTTPOptions(t *testing.T) {
	r := httpRequest{header: http.Header{}}
	err := r.decodeOptions(map[string]interface{}{
		"headers": map[string]interface{}{"Content-Type": "text/plain", "X-Count": int64(2)},
		"body":    map[string]interface{}{"k": "v"},
		"timeout": float64(1500),
	})
	if err != nil {
		t.Fatalf("decodeOptions() error = %v", err)
	}
	if got := r.header.Get("Content-Type"); got != "text/plain" {
		t.Errorf("Content-Type = %q, want the explicit header", got)
	}
	if got := r.header.Get("X-Count"); got != "2" {
		t.Errorf("X-Count = %q, want 2", got)
	}
	if string(r.body) != `{"k":"v"}` {
		t.Errorf("body = %s", r.body)
	}
	if r.timeout != 1500*time.Millisecond {
		t.Errorf("timeout = %v, want 1.5s", r.timeout)
	}

	if err := r.decodeOptions("nope"); err == nil {
		t.Error("decodeOptions(string) error = nil, want failure")
	}
}
