package engine

import (
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierhq/courier/packages/collection"
	"github.com/courierhq/courier/packages/httpclient"
)

type transportSpy struct {
	calls []*httpclient.Request
	resp  *httpclient.Response
	err   error
}

func (s *transportSpy) Do(req *httpclient.Request) (*httpclient.Response, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &httpclient.Response{StatusCode: 200, Status: "200 OK", Body: []byte(`{}`)}, nil
}

type memStore struct {
	values map[string]string
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string)}
}

func (m *memStore) Get(key string) (string, bool) { v, ok := m.values[key]; return v, ok }
func (m *memStore) Set(key, value string)         { m.values[key] = value }
func (m *memStore) All() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

func newEngine(spy *transportSpy) *Engine {
	return New(spy, newMemStore())
}

func TestExecute_ResolvesURLAndHeaders(t *testing.T) {
	spy := &transportSpy{}
	e := newEngine(spy)

	req := &collection.Request{
		Name:   "Get User",
		Method: "get",
		URL:    "https://<<host>>/users/<<id>>",
		Headers: []collection.Header{
			{Key: " X-Trace ", Value: "<<id>>", Enabled: true},
			{Key: "X-Off", Value: "nope", Enabled: false},
			{Key: "", Value: "dropped", Enabled: true},
		},
	}
	colVars := []collection.Variable{{Key: "host", Value: "api.example.test", Enabled: true}}
	envVars := []collection.Variable{{Key: "id", Value: "42", Enabled: true}}

	resp := e.Execute(req, colVars, envVars, collection.Auth{})

	require.True(t, resp.IsSuccess())
	require.Len(t, spy.calls, 1)
	sent := spy.calls[0]
	assert.Equal(t, "GET", sent.Method)
	assert.Equal(t, "https://api.example.test/users/42", sent.URL)
	assert.Equal(t, "42", sent.Headers["X-Trace"])
	assert.NotContains(t, sent.Headers, "X-Off")
	assert.NotContains(t, sent.Headers, "")
}

func TestExecute_Params(t *testing.T) {
	spy := &transportSpy{}
	e := newEngine(spy)

	req := &collection.Request{
		Method: "GET",
		URL:    "https://api.example.test/search?inline=dropped",
		Params: []collection.Param{
			{Key: "q", Value: "golang", Enabled: true},
			{Key: "page", Value: "2", Enabled: true},
			{Key: "off", Value: "x", Enabled: false},
		},
	}
	e.Execute(req, nil, nil, collection.Auth{})

	require.Len(t, spy.calls, 1)
	u, err := url.Parse(spy.calls[0].URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "golang", q.Get("q"))
	assert.Equal(t, "2", q.Get("page"))
	assert.Empty(t, q.Get("off"))
	// the params list supersedes the inline query string
	assert.Empty(t, q.Get("inline"))
}

func TestExecute_Auth(t *testing.T) {
	t.Run("bearer", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Auth: collection.Auth{Type: collection.AuthBearer, Token: "<<tok>>"},
		}
		e.Execute(req, []collection.Variable{{Key: "tok", Value: "abc", Enabled: true}}, nil, collection.Auth{})
		assert.Equal(t, "Bearer abc", spy.calls[0].Headers["Authorization"])
	})

	t.Run("bearer with empty token adds nothing", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Auth: collection.Auth{Type: collection.AuthBearer},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		assert.NotContains(t, spy.calls[0].Headers, "Authorization")
	})

	t.Run("basic", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Auth: collection.Auth{Type: collection.AuthBasic, Username: "ada", Password: "pw"},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		// base64("ada:pw")
		assert.Equal(t, "Basic YWRhOnB3", spy.calls[0].Headers["Authorization"])
	})

	t.Run("basic with only username still sends", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Auth: collection.Auth{Type: collection.AuthBasic, Username: "ada"},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		assert.Contains(t, spy.calls[0].Headers, "Authorization")
	})

	t.Run("api key in header", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Auth: collection.Auth{Type: collection.AuthAPIKey, Key: "X-Api-Key", Value: "k1", AddTo: collection.AddToHeader},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		assert.Equal(t, "k1", spy.calls[0].Headers["X-Api-Key"])
	})

	t.Run("api key in query needs both key and value", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Auth: collection.Auth{Type: collection.AuthAPIKey, Key: "api_key", Value: "k1", AddTo: collection.AddToQuery},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		u, _ := url.Parse(spy.calls[0].URL)
		assert.Equal(t, "k1", u.Query().Get("api_key"))

		spy.calls = nil
		req.Auth.Value = ""
		e.Execute(req, nil, nil, collection.Auth{})
		u, _ = url.Parse(spy.calls[0].URL)
		assert.Empty(t, u.Query().Get("api_key"))
	})

	t.Run("inherit uses folder or collection auth", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Auth: collection.Auth{Type: collection.AuthInherit},
		}
		inherited := collection.Auth{Type: collection.AuthBearer, Token: "parent-tok"}
		e.Execute(req, nil, nil, inherited)
		assert.Equal(t, "Bearer parent-tok", spy.calls[0].Headers["Authorization"])
	})

	t.Run("inherit with no parent auth sends nothing", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Auth: collection.Auth{Type: collection.AuthInherit},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		assert.NotContains(t, spy.calls[0].Headers, "Authorization")
	})
}

func TestExecute_Body(t *testing.T) {
	t.Run("json body gets default content type", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "POST", URL: "https://api.example.test",
			Body: collection.Body{Type: collection.BodyJSON, Raw: `{"name": "<<n>>"}`},
		}
		e.Execute(req, []collection.Variable{{Key: "n", Value: "ada", Enabled: true}}, nil, collection.Auth{})
		sent := spy.calls[0]
		assert.Equal(t, `{"name": "ada"}`, sent.Body)
		assert.Equal(t, "application/json", sent.Headers["Content-Type"])
	})

	t.Run("explicit content type is kept", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method:  "POST", URL: "https://api.example.test",
			Headers: []collection.Header{{Key: "Content-Type", Value: "application/vnd.custom+json", Enabled: true}},
			Body:    collection.Body{Type: collection.BodyJSON, Raw: `{}`},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		assert.Equal(t, "application/vnd.custom+json", spy.calls[0].Headers["Content-Type"])
	})

	t.Run("raw body gets no default content type", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "POST", URL: "https://api.example.test",
			Body:   collection.Body{Type: collection.BodyRaw, Raw: "plain"},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		sent := spy.calls[0]
		assert.Equal(t, "plain", sent.Body)
		assert.NotContains(t, sent.Headers, "Content-Type")
	})

	t.Run("urlencoded body", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "POST", URL: "https://api.example.test",
			Body: collection.Body{Type: collection.BodyURLEncoded, Form: []collection.FormField{
				{Key: "user name", Value: "ada l", Enabled: true},
				{Key: "off", Value: "x", Enabled: false},
			}},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		sent := spy.calls[0]
		assert.Equal(t, "user+name=ada+l", sent.Body)
		assert.Equal(t, "application/x-www-form-urlencoded", sent.Headers["Content-Type"])
	})

	t.Run("multipart fields, no content type from the engine", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "POST", URL: "https://api.example.test",
			Body: collection.Body{Type: collection.BodyMultipart, Form: []collection.FormField{
				{Key: "name", Value: "ada", Enabled: true},
			}},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		sent := spy.calls[0]
		require.Len(t, sent.Multipart, 1)
		assert.Equal(t, "name", sent.Multipart[0].Name)
		assert.Equal(t, "ada", sent.Multipart[0].Value)
		assert.NotContains(t, sent.Headers, "Content-Type")
	})

	t.Run("GET never carries a body", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Body:   collection.Body{Type: collection.BodyJSON, Raw: `{"x":1}`},
		}
		e.Execute(req, nil, nil, collection.Auth{})
		assert.Empty(t, spy.calls[0].Body)
	})
}

func TestExecute_PreScript(t *testing.T) {
	t.Run("error prevents the transport call", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method:    "GET", URL: "https://api.example.test",
			PreScript: `throw new Error("setup failed")`,
		}
		resp := e.Execute(req, nil, nil, collection.Auth{})

		assert.Empty(t, spy.calls)
		assert.Equal(t, 0, resp.Status)
		assert.Contains(t, resp.StatusText, "Pre-script error")
		assert.Contains(t, resp.PreScriptError, "setup failed")
		assert.False(t, resp.IsSuccess())
	})

	t.Run("output is attached to the final response", func(t *testing.T) {
		spy := &transportSpy{}
		e := newEngine(spy)
		req := &collection.Request{
			Method:    "GET", URL: "https://api.example.test",
			PreScript: `console.log("preparing")`,
		}
		resp := e.Execute(req, nil, nil, collection.Auth{})
		assert.Equal(t, "preparing", resp.PreScriptOutput)
		assert.Len(t, spy.calls, 1)
	})

	t.Run("set value is visible to this request's resolution", func(t *testing.T) {
		// The engine resolves before the pre-script runs, so the write only
		// affects subsequent requests through the live store.
		store := newMemStore()
		spy := &transportSpy{}
		e := New(spy, store)
		req := &collection.Request{
			Method:    "GET", URL: "https://api.example.test",
			PreScript: `environment.set("written", "yes")`,
		}
		e.Execute(req, nil, nil, collection.Auth{})
		v, ok := store.Get("written")
		assert.True(t, ok)
		assert.Equal(t, "yes", v)
	})
}

func TestExecute_PostScript(t *testing.T) {
	t.Run("output is captured", func(t *testing.T) {
		spy := &transportSpy{resp: &httpclient.Response{
			StatusCode: 200, Status: "200 OK", Body: []byte(`{"token": "jwt"}`),
		}}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Script: `console.log(response.data.token)`,
		}
		resp := e.Execute(req, nil, nil, collection.Auth{})
		assert.Equal(t, "jwt", resp.ScriptOutput)
		assert.Empty(t, resp.ScriptError)
	})

	t.Run("error is recorded but the response survives", func(t *testing.T) {
		spy := &transportSpy{resp: &httpclient.Response{
			StatusCode: 201, Status: "201 Created", Body: []byte(`{"id": 1}`),
		}}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "POST", URL: "https://api.example.test",
			Script: `throw new Error("assert failed")`,
		}
		resp := e.Execute(req, nil, nil, collection.Auth{})
		assert.Equal(t, 201, resp.Status)
		assert.Equal(t, `{"id": 1}`, resp.Body)
		assert.Contains(t, resp.ScriptError, "assert failed")
		assert.Empty(t, resp.ScriptOutput)
		assert.True(t, resp.IsSuccess())
	})

	t.Run("non-JSON body is a script error", func(t *testing.T) {
		spy := &transportSpy{resp: &httpclient.Response{
			StatusCode: 200, Status: "200 OK", Body: []byte("<html></html>"),
		}}
		e := newEngine(spy)
		req := &collection.Request{
			Method: "GET", URL: "https://api.example.test",
			Script: `console.log(response.status)`,
		}
		resp := e.Execute(req, nil, nil, collection.Auth{})
		assert.Contains(t, resp.ScriptError, "not valid JSON")
		assert.Equal(t, 200, resp.Status)
	})
}

func TestExecute_TransportError(t *testing.T) {
	spy := &transportSpy{err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}
	e := newEngine(spy)
	req := &collection.Request{Method: "GET", URL: "https://api.example.test"}

	resp := e.Execute(req, nil, nil, collection.Auth{})

	assert.Equal(t, 0, resp.Status)
	assert.Equal(t, httpclient.ErrConnectionRefused, resp.ErrorCode)
	assert.Equal(t, "connection refused", resp.StatusText)
	assert.False(t, resp.IsSuccess())
}

func TestExecute_ClassifiedErrorPassesThrough(t *testing.T) {
	// A transport that already classifies (like httpclient.Client) must
	// not be re-wrapped into a generic network error.
	spy := &transportSpy{err: &httpclient.TransportError{Code: httpclient.ErrTimeout, Msg: "request timed out"}}
	e := newEngine(spy)
	req := &collection.Request{Method: "GET", URL: "https://api.example.test"}

	resp := e.Execute(req, nil, nil, collection.Auth{})
	assert.Equal(t, httpclient.ErrTimeout, resp.ErrorCode)
	assert.Equal(t, "request timed out", resp.StatusText)
}

func TestIsSuccess(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, false},
		{199, false},
		{200, true},
		{204, true},
		{302, true},
		{399, true},
		{400, false},
		{500, false},
	}
	for _, tt := range tests {
		resp := &ApiResponse{Status: tt.status}
		assert.Equal(t, tt.want, resp.IsSuccess(), "status %d", tt.status)
	}
}

func TestExecute_UnresolvedVariableWarns(t *testing.T) {
	var warnings []string
	spy := &transportSpy{}
	e := New(spy, newMemStore(), WithWarnFunc(func(format string, args ...any) {
		warnings = append(warnings, format)
	}))
	req := &collection.Request{Method: "GET", URL: "https://<<missing>>/x"}

	e.Execute(req, nil, nil, collection.Auth{})
	require.NotEmpty(t, warnings)
	assert.Equal(t, "unresolved variable: %s", warnings[0])
	assert.Equal(t, "https://<<missing>>/x", spy.calls[0].URL)
}
