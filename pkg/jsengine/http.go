package jsengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/maestro-orchestra/pkg/logger"
)

const defaultHTTPTimeout = 30 * time.Second

// httpRequest is a script's http call after its options were decoded.
type httpRequest struct {
	method  string
	url     string
	header  http.Header
	body    []byte
	timeout time.Duration
}

// httpResult is handed back to scripts as a plain object.
type httpResult struct {
	status int
	body   []byte
	header http.Header
}

// httpModule returns the http object: get, post, put, delete and
// request(method, url, [options]).
func (e *Engine) httpModule() *goja.Object {
	obj := e.runtime.NewObject()
	for name, method := range map[string]string{
		"get":    http.MethodGet,
		"post":   http.MethodPost,
		"put":    http.MethodPut,
		"delete": http.MethodDelete,
	} {
		method := method
		e.mustSet(obj, name, func(call goja.FunctionCall) goja.Value {
			return e.httpCall(method, call.Arguments)
		})
	}
	e.mustSet(obj, "request", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			panic(e.runtime.NewTypeError("http.request requires method and url"))
		}
		return e.httpCall(strings.ToUpper(call.Argument(0).String()), call.Arguments[1:])
	})
	return obj
}

func (e *Engine) mustSet(obj *goja.Object, name string, fn func(goja.FunctionCall) goja.Value) {
	if err := obj.Set(name, fn); err != nil {
		panic(e.runtime.NewTypeError(fmt.Sprintf("failed to set http.%s: %v", name, err)))
	}
}

// httpCall runs one request. Failures are thrown into the script.
func (e *Engine) httpCall(method string, args []goja.Value) goja.Value {
	if len(args) < 1 || goja.IsUndefined(args[0]) {
		panic(e.runtime.NewTypeError(fmt.Sprintf("http.%s requires url", strings.ToLower(method))))
	}

	req := httpRequest{method: method, url: args[0].String(), header: http.Header{}, timeout: defaultHTTPTimeout}
	if len(args) > 1 && !goja.IsUndefined(args[1]) && !goja.IsNull(args[1]) {
		if err := req.decodeOptions(args[1].Export()); err != nil {
			panic(e.runtime.NewTypeError(err.Error()))
		}
	}

	res, err := e.send(req)
	if err != nil {
		panic(e.runtime.NewGoError(err))
	}
	return e.runtime.ToValue(res.toJS())
}

// decodeOptions reads {headers, body, timeout}. Object bodies are sent as
// JSON unless a Content-Type header says otherwise.
func (r *httpRequest) decodeOptions(v interface{}) error {
	opts, ok := v.(map[string]interface{})
	if !ok {
		return fmt.Errorf("http options must be an object")
	}

	if h, ok := opts["headers"].(map[string]interface{}); ok {
		for k, v := range h {
			r.header.Set(k, fmt.Sprint(v))
		}
	}

	switch b := opts["body"].(type) {
	case nil:
	case string:
		r.body = []byte(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("http body is not serializable: %w", err)
		}
		r.body = data
		if r.header.Get("Content-Type") == "" {
			r.header.Set("Content-Type", "application/json")
		}
	}

	switch t := opts["timeout"].(type) {
	case int64:
		r.timeout = time.Duration(t) * time.Millisecond
	case float64:
		r.timeout = time.Duration(t * float64(time.Millisecond))
	}
	if r.timeout <= 0 {
		r.timeout = defaultHTTPTimeout
	}
	return nil
}

func (e *Engine) send(r httpRequest) (*httpResult, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	req.Header = r.header

	logger.Debug("JsHttp: %s %s", r.method, r.url)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &httpResult{status: resp.StatusCode, body: data, header: resp.Header}, nil
}

// toJS builds {status, ok, body, headers, json}; json is null unless the
// body parses as JSON.
func (r *httpResult) toJS() map[string]interface{} {
	headers := make(map[string]interface{}, len(r.header))
	for k := range r.header {
		headers[k] = r.header.Get(k)
	}

	var parsed interface{}
	if err := json.Unmarshal(r.body, &parsed); err != nil {
		parsed = nil
	}

	return map[string]interface{}{
		"status":  r.status,
		"ok":      r.status >= 200 && r.status < 300,
		"body":    string(r.body),
		"headers": headers,
		"json":    parsed,
	}
}
