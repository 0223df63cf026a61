package vars

import (
	"regexp"
	"strings"

	"github.com/courierhq/courier/packages/collection"
)

var tokenPattern = regexp.MustCompile(`<<([^<>]+)>>`)

// WarnFunc is a function type for handling warnings
type WarnFunc func(format string, args ...any)

// Scope is a flat key-to-effective-value mapping. It is immutable after
// construction and safe for concurrent reads.
type Scope struct {
	values   map[string]string
	warnFunc WarnFunc
}

// NewScope builds a scope from collection variables then environment
// variables; an environment entry with a duplicate key overwrites the
// collection entry. Disabled variables are excluded.
func NewScope(collectionVars, envVars []collection.Variable) *Scope {
	return buildScope(collectionVars, envVars, false)
}

// NewHistoryScope is the history-resolution variant: it additionally
// excludes secret-marked variables, so <<key>> tokens for secrets stay
// literal in anything derived from it.
func NewHistoryScope(collectionVars, envVars []collection.Variable) *Scope {
	return buildScope(collectionVars, envVars, true)
}

func buildScope(collectionVars, envVars []collection.Variable, skipSecrets bool) *Scope {
	values := make(map[string]string, len(collectionVars)+len(envVars))
	insert := func(v collection.Variable) {
		if !v.Enabled {
			return
		}
		if skipSecrets && v.Secret {
			delete(values, v.Key)
			return
		}
		values[v.Key] = v.EffectiveValue()
	}
	for _, v := range collectionVars {
		insert(v)
	}
	for _, v := range envVars {
		insert(v)
	}
	return &Scope{values: values}
}

// SetWarnFunc sets a function called when a token cannot be resolved.
func (s *Scope) SetWarnFunc(fn WarnFunc) {
	s.warnFunc = fn
}

func (s *Scope) warn(format string, args ...any) {
	if s.warnFunc != nil {
		s.warnFunc(format, args...)
	}
}

// Lookup returns the effective value for a key.
func (s *Scope) Lookup(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Resolve replaces every <<key>> occurrence in the input. Unknown tokens
// are left untouched.
func (s *Scope) Resolve(input string) string {
	return tokenPattern.ReplaceAllStringFunc(input, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-2])
		if val, ok := s.values[key]; ok {
			return val
		}
		s.warn("unresolved variable: %s", key)
		return match
	})
}

// ResolveRequest returns a copy of the request with the scope applied to
// the URL, every header value, every param value, the raw body, form
// entries, and the bearer/basic/api-key auth fields. Keys are never
// substituted, and the raw body is treated as opaque text.
func ResolveRequest(req *collection.Request, scope *Scope) *collection.Request {
	out := *req

	out.URL = scope.Resolve(req.URL)

	out.Headers = make([]collection.Header, len(req.Headers))
	for i, h := range req.Headers {
		h.Value = scope.Resolve(h.Value)
		out.Headers[i] = h
	}

	out.Params = make([]collection.Param, len(req.Params))
	for i, p := range req.Params {
		p.Value = scope.Resolve(p.Value)
		out.Params[i] = p
	}

	out.Body.Raw = scope.Resolve(req.Body.Raw)
	out.Body.Form = make([]collection.FormField, len(req.Body.Form))
	for i, f := range req.Body.Form {
		f.Value = scope.Resolve(f.Value)
		out.Body.Form[i] = f
	}

	out.Auth.Token = scope.Resolve(req.Auth.Token)
	out.Auth.Username = scope.Resolve(req.Auth.Username)
	out.Auth.Password = scope.Resolve(req.Auth.Password)
	out.Auth.Key = scope.Resolve(req.Auth.Key)
	out.Auth.Value = scope.Resolve(req.Auth.Value)

	return &out
}
