package engine

import (
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/courierhq/courier/packages/collection"
	"github.com/courierhq/courier/packages/httpclient"
	"github.com/courierhq/courier/packages/script"
	"github.com/courierhq/courier/packages/vars"
)

// Transport sends a wire-ready request. *httpclient.Client satisfies it;
// tests substitute spies.
type Transport interface {
	Do(req *httpclient.Request) (*httpclient.Response, error)
}

type Engine struct {
	transport     Transport
	store         script.EnvStore
	timeout       time.Duration
	scriptTimeout time.Duration
	warnFunc      vars.WarnFunc
}

type Option func(*Engine)

// WithTimeout overrides the per-request transport timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithScriptTimeout bounds pre/post script execution.
func WithScriptTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.scriptTimeout = d
	}
}

// WithWarnFunc receives unresolved-variable warnings from the resolver.
func WithWarnFunc(fn vars.WarnFunc) Option {
	return func(e *Engine) {
		e.warnFunc = fn
	}
}

// New creates an engine over the given transport and live environment
// variable store. The store is the only state shared between calls; it
// is mutated solely through the sandbox's environment.set.
func New(transport Transport, store script.EnvStore, opts ...Option) *Engine {
	e := &Engine{
		transport:     transport,
		store:         store,
		timeout:       httpclient.DefaultTimeout,
		scriptTimeout: script.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one request: resolve auth and variables, run the
// pre-script, call the transport, run the post-script. Each step is a
// hard precondition for the next.
func (e *Engine) Execute(req *collection.Request, collectionVars, envVars []collection.Variable, inherited collection.Auth) *ApiResponse {
	scope := vars.NewScope(collectionVars, envVars)
	scope.SetWarnFunc(e.warnFunc)

	auth := collection.EffectiveAuth(req.Auth, inherited)

	requestURL := buildURL(req, auth, scope)
	headers := buildHeaders(req, auth, scope)
	body, multipart := buildBody(req, scope, headers)

	sandbox := script.New(e.store, script.WithTimeout(e.scriptTimeout))

	var preOutput string
	if strings.TrimSpace(req.PreScript) != "" {
		pre := sandbox.RunPre(req.PreScript)
		preOutput = pre.Output
		if pre.Err != nil {
			return &ApiResponse{
				Status:          0,
				StatusText:      "Pre-script error: " + pre.Err.Error(),
				PreScriptError:  pre.Err.Error(),
				PreScriptOutput: preOutput,
			}
		}
	}

	resp, err := e.transport.Do(&httpclient.Request{
		Method:    strings.ToUpper(req.Method),
		URL:       requestURL,
		Headers:   headers,
		Body:      body,
		Multipart: multipart,
		Timeout:   e.timeout,
	})
	if err != nil {
		terr := httpclient.Classify(err)
		return &ApiResponse{
			Status:          0,
			StatusText:      terr.Msg,
			ErrorCode:       terr.Code,
			PreScriptOutput: preOutput,
		}
	}

	out := &ApiResponse{
		Status:          resp.StatusCode,
		StatusText:      resp.Status,
		Headers:         resp.Headers,
		Body:            resp.BodyString(),
		Time:            resp.Duration,
		Size:            resp.Size,
		PreScriptOutput: preOutput,
	}

	if strings.TrimSpace(req.Script) != "" {
		post := sandbox.RunPost(req.Script, resp)
		if post.Err != nil {
			out.ScriptError = post.Err.Error()
		} else {
			out.ScriptOutput = post.Output
		}
	}

	return out
}

// buildURL resolves the URL, drops any inline query string (the explicit
// params list supersedes it), and appends enabled params plus the
// api-key query pair when both key and value resolve non-empty.
func buildURL(req *collection.Request, auth collection.Auth, scope *vars.Scope) string {
	raw := scope.Resolve(req.URL)
	if i := strings.Index(raw, "?"); i >= 0 {
		raw = raw[:i]
	}

	q := url.Values{}
	for _, p := range req.Params {
		if !p.Enabled {
			continue
		}
		key := strings.TrimSpace(p.Key)
		if key == "" {
			continue
		}
		q.Add(key, scope.Resolve(p.Value))
	}

	if auth.Type == collection.AuthAPIKey && auth.AddTo == collection.AddToQuery {
		key := scope.Resolve(auth.Key)
		value := scope.Resolve(auth.Value)
		if key != "" && value != "" {
			q.Add(key, value)
		}
	}

	if len(q) > 0 {
		raw += "?" + q.Encode()
	}
	return raw
}

// buildHeaders collects enabled headers (keys trimmed, values resolved,
// empty values permitted) and overlays auth-derived headers when their
// resolved values are non-empty.
func buildHeaders(req *collection.Request, auth collection.Auth, scope *vars.Scope) map[string]string {
	headers := make(map[string]string)
	for _, h := range req.Headers {
		if !h.Enabled {
			continue
		}
		key := strings.TrimSpace(h.Key)
		if key == "" {
			continue
		}
		headers[key] = scope.Resolve(h.Value)
	}

	switch auth.Type {
	case collection.AuthBearer:
		if token := scope.Resolve(auth.Token); token != "" {
			headers["Authorization"] = "Bearer " + token
		}
	case collection.AuthBasic:
		user := scope.Resolve(auth.Username)
		pass := scope.Resolve(auth.Password)
		if user != "" || pass != "" {
			encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
			headers["Authorization"] = "Basic " + encoded
		}
	case collection.AuthAPIKey:
		if auth.AddTo == collection.AddToHeader {
			key := scope.Resolve(auth.Key)
			value := scope.Resolve(auth.Value)
			if key != "" && value != "" {
				headers[key] = value
			}
		}
	}

	return headers
}

// buildBody constructs the body for methods that carry one. Multipart
// bodies get no Content-Type here; the transport sets the boundary.
func buildBody(req *collection.Request, scope *vars.Scope, headers map[string]string) (string, []httpclient.MultipartField) {
	method := strings.ToUpper(req.Method)
	if method == "GET" || method == "HEAD" {
		return "", nil
	}

	switch req.Body.Type {
	case collection.BodyJSON, collection.BodyRaw:
		body := scope.Resolve(req.Body.Raw)
		if req.Body.Type == collection.BodyJSON && headers["Content-Type"] == "" {
			headers["Content-Type"] = "application/json"
		}
		return body, nil

	case collection.BodyURLEncoded:
		var pairs []string
		for _, f := range req.Body.Form {
			if !f.Enabled {
				continue
			}
			pairs = append(pairs, url.QueryEscape(f.Key)+"="+url.QueryEscape(scope.Resolve(f.Value)))
		}
		if headers["Content-Type"] == "" {
			headers["Content-Type"] = "application/x-www-form-urlencoded"
		}
		return strings.Join(pairs, "&"), nil

	case collection.BodyMultipart:
		var fields []httpclient.MultipartField
		for _, f := range req.Body.Form {
			if !f.Enabled {
				continue
			}
			fields = append(fields, httpclient.MultipartField{
				Name:  f.Key,
				Value: scope.Resolve(f.Value),
			})
		}
		return "", fields
	}

	return "", nil
}
