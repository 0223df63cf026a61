package script

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierhq/courier/packages/httpclient"
)

type memStore struct {
	values map[string]string
}

func newMemStore(values map[string]string) *memStore {
	if values == nil {
		values = make(map[string]string)
	}
	return &memStore{values: values}
}

func (m *memStore) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *memStore) Set(key, value string) {
	m.values[key] = value
}

func (m *memStore) All() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

func TestSandbox_ConsoleLog(t *testing.T) {
	s := New(newMemStore(nil))

	t.Run("strings and numbers", func(t *testing.T) {
		res := s.RunPre(`console.log("hello", 42)`)
		require.NoError(t, res.Err)
		assert.Equal(t, "hello 42", res.Output)
	})

	t.Run("objects are pretty printed", func(t *testing.T) {
		res := s.RunPre(`console.log({a: 1})`)
		require.NoError(t, res.Err)
		assert.Contains(t, res.Output, `"a": 1`)
	})

	t.Run("multiple calls join with newlines", func(t *testing.T) {
		res := s.RunPre("console.log('one')\nconsole.log('two')")
		require.NoError(t, res.Err)
		assert.Equal(t, "one\ntwo", res.Output)
	})

	t.Run("null renders as null", func(t *testing.T) {
		res := s.RunPre(`console.log(null)`)
		require.NoError(t, res.Err)
		assert.Equal(t, "null", res.Output)
	})
}

func TestSandbox_Environment(t *testing.T) {
	t.Run("get returns existing value", func(t *testing.T) {
		s := New(newMemStore(map[string]string{"host": "example.test"}))
		res := s.RunPre(`console.log(environment.get("host"))`)
		require.NoError(t, res.Err)
		assert.Equal(t, "example.test", res.Output)
	})

	t.Run("get of missing key is null", func(t *testing.T) {
		s := New(newMemStore(nil))
		res := s.RunPre(`console.log(environment.get("nope") === null)`)
		require.NoError(t, res.Err)
		assert.Equal(t, "true", res.Output)
	})

	t.Run("set lands in the store after the script", func(t *testing.T) {
		store := newMemStore(nil)
		s := New(store)
		res := s.RunPre(`environment.set("token", "abc")`)
		require.NoError(t, res.Err)
		v, ok := store.Get("token")
		assert.True(t, ok)
		assert.Equal(t, "abc", v)
	})

	t.Run("set is visible to a later get in the same script", func(t *testing.T) {
		s := New(newMemStore(nil))
		res := s.RunPre(`environment.set("k", "v"); console.log(environment.get("k"))`)
		require.NoError(t, res.Err)
		assert.Equal(t, "v", res.Output)
	})

	t.Run("writes before a throw are kept", func(t *testing.T) {
		store := newMemStore(nil)
		s := New(store)
		res := s.RunPre(`environment.set("kept", "yes"); throw new Error("boom")`)
		require.Error(t, res.Err)
		v, ok := store.Get("kept")
		assert.True(t, ok)
		assert.Equal(t, "yes", v)
	})

	t.Run("all returns a copy", func(t *testing.T) {
		s := New(newMemStore(map[string]string{"a": "1", "b": "2"}))
		res := s.RunPre(`var all = environment.all(); console.log(all.a, all.b)`)
		require.NoError(t, res.Err)
		assert.Equal(t, "1 2", res.Output)
	})
}

func TestSandbox_Errors(t *testing.T) {
	s := New(newMemStore(nil))

	t.Run("thrown error carries the message", func(t *testing.T) {
		res := s.RunPre(`throw new Error("boom")`)
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "boom")
	})

	t.Run("syntax error is reported", func(t *testing.T) {
		res := s.RunPre(`this is not javascript`)
		assert.Error(t, res.Err)
	})

	t.Run("output before the error is kept", func(t *testing.T) {
		res := s.RunPre(`console.log("before"); throw new Error("boom")`)
		require.Error(t, res.Err)
		assert.Equal(t, "before", res.Output)
	})
}

func TestSandbox_Timeout(t *testing.T) {
	s := New(newMemStore(nil), WithTimeout(50*time.Millisecond))
	res := s.RunPre(`while (true) {}`)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "timed out")
}

func TestSandbox_RunPost(t *testing.T) {
	t.Run("response view exposes parsed body", func(t *testing.T) {
		s := New(newMemStore(nil))
		resp := &httpclient.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       []byte(`{"user": {"id": 7}, "ok": true}`),
		}
		res := s.RunPost(`console.log(response.status, response.data.user.id, response.data.ok)`, resp)
		require.NoError(t, res.Err)
		assert.Equal(t, "200 7 true", res.Output)
	})

	t.Run("headers are available", func(t *testing.T) {
		s := New(newMemStore(nil))
		resp := &httpclient.Response{
			StatusCode: 200,
			Status:     "200 OK",
			Headers:    map[string]string{"X-Request-Id": "abc"},
			Body:       []byte(`{}`),
		}
		res := s.RunPost(`console.log(response.headers["X-Request-Id"])`, resp)
		require.NoError(t, res.Err)
		assert.Equal(t, "abc", res.Output)
	})

	t.Run("non-JSON body is a script error", func(t *testing.T) {
		s := New(newMemStore(nil))
		resp := &httpclient.Response{StatusCode: 200, Status: "200 OK", Body: []byte("<html></html>")}
		res := s.RunPost(`console.log(response.status)`, resp)
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "not valid JSON")
	})

	t.Run("empty body means null data", func(t *testing.T) {
		s := New(newMemStore(nil))
		resp := &httpclient.Response{StatusCode: 204, Status: "204 No Content"}
		res := s.RunPost(`console.log(response.data === null, response.status)`, resp)
		require.NoError(t, res.Err)
		assert.Equal(t, "true 204", res.Output)
	})

	t.Run("script can store a value from the response", func(t *testing.T) {
		store := newMemStore(nil)
		s := New(store)
		resp := &httpclient.Response{StatusCode: 200, Status: "200 OK", Body: []byte(`{"token": "jwt-123"}`)}
		res := s.RunPost(`environment.set("token", response.data.token)`, resp)
		require.NoError(t, res.Err)
		v, _ := store.Get("token")
		assert.Equal(t, "jwt-123", v)
	})
}
