package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/tidwall/gjson"

	"github.com/courierhq/courier/packages/httpclient"
)

// DefaultTimeout bounds a single script execution.
const DefaultTimeout = 5 * time.Second

// EnvStore is the narrow capability scripts get over environment
// variables.
type EnvStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	All() map[string]string
}

type Sandbox struct {
	store   EnvStore
	timeout time.Duration
}

type Option func(*Sandbox)

func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) {
		s.timeout = d
	}
}

func New(store EnvStore, opts ...Option) *Sandbox {
	s := &Sandbox{
		store:   store,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result carries the console output and, if the script threw, its error.
type Result struct {
	Output string
	Err    error
}

// RunPre executes a pre-request script. A non-nil Err means the request
// must not be sent.
func (s *Sandbox) RunPre(source string) Result {
	return s.run(source, nil)
}

// RunPost executes a post-response script against the completed
// response. A body that is not valid JSON is a script error; the
// response itself is never modified.
func (s *Sandbox) RunPost(source string, resp *httpclient.Response) Result {
	view, err := responseView(resp)
	if err != nil {
		return Result{Err: err}
	}
	return s.run(source, view)
}

func (s *Sandbox) run(source string, response map[string]any) Result {
	vm := goja.New()
	var buf strings.Builder
	staged := make(map[string]string)
	snapshot := s.store.All()

	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, formatValue(arg.Export()))
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(strings.Join(parts, " "))
		return goja.Undefined()
	})
	_ = vm.Set("console", console)

	environment := vm.NewObject()
	_ = environment.Set("get", func(key string) goja.Value {
		if v, ok := snapshot[key]; ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	_ = environment.Set("set", func(key, value string) {
		staged[key] = value
		snapshot[key] = value
	})
	_ = environment.Set("all", func() map[string]string {
		all := make(map[string]string, len(snapshot))
		for k, v := range snapshot {
			all[k] = v
		}
		return all
	})
	_ = vm.Set("environment", environment)

	if response != nil {
		_ = vm.Set("response", response)
	}

	timer := time.AfterFunc(s.timeout, func() {
		vm.Interrupt("script timed out")
	})
	defer timer.Stop()

	_, err := vm.RunString(source)

	// Writes land in the live store even when the script threw, so sets
	// that happened before the throw are kept.
	for k, v := range staged {
		s.store.Set(k, v)
	}

	if err != nil {
		return Result{Output: buf.String(), Err: scriptError(err)}
	}
	return Result{Output: buf.String()}
}

func scriptError(err error) error {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		return errors.New(exc.Value().String())
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return errors.New("script timed out")
	}
	return err
}

func responseView(resp *httpclient.Response) (map[string]any, error) {
	var data any
	if len(resp.Body) > 0 {
		if !gjson.ValidBytes(resp.Body) {
			return nil, errors.New("response body is not valid JSON")
		}
		data = gjson.ParseBytes(resp.Body).Value()
	}

	headers := make(map[string]any, len(resp.Headers))
	for k, v := range resp.Headers {
		headers[k] = v
	}

	return map[string]any{
		"data":       data,
		"headers":    headers,
		"status":     resp.StatusCode,
		"statusText": resp.Status,
	}, nil
}

// formatValue renders a console.log argument: strings as-is, objects and
// arrays pretty-printed.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case map[string]any, []any:
		if b, err := json.MarshalIndent(val, "", "  "); err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("%v", v)
}
