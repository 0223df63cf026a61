package collection

import "github.com/google/uuid"

// Variable is a single key/value entry in a collection or environment
// scope. CurrentValue takes precedence over Value, which takes precedence
// over InitialValue. Key uniqueness is not enforced; later entries with
// the same key win during scope construction.
type Variable struct {
	Key          string `yaml:"key" json:"key"`
	Value        string `yaml:"value,omitempty" json:"value,omitempty"`
	CurrentValue string `yaml:"currentValue,omitempty" json:"currentValue,omitempty"`
	InitialValue string `yaml:"initialValue,omitempty" json:"initialValue,omitempty"`
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Secret       bool   `yaml:"secret,omitempty" json:"secret,omitempty"`
}

// EffectiveValue returns the resolved string for the variable.
func (v Variable) EffectiveValue() string {
	if v.CurrentValue != "" {
		return v.CurrentValue
	}
	if v.Value != "" {
		return v.Value
	}
	return v.InitialValue
}

type Header struct {
	Key     string `yaml:"key" json:"key"`
	Value   string `yaml:"value" json:"value"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

type Param struct {
	Key     string `yaml:"key" json:"key"`
	Value   string `yaml:"value" json:"value"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

type BodyType string

const (
	BodyNone       BodyType = ""
	BodyJSON       BodyType = "json"
	BodyRaw        BodyType = "raw"
	BodyURLEncoded BodyType = "urlencoded"
	BodyMultipart  BodyType = "multipart"
)

type FormField struct {
	Key     string `yaml:"key" json:"key"`
	Value   string `yaml:"value" json:"value"`
	Enabled bool   `yaml:"enabled" json:"enabled"`
}

type Body struct {
	Type BodyType    `yaml:"type,omitempty" json:"type,omitempty"`
	Raw  string      `yaml:"raw,omitempty" json:"raw,omitempty"`
	Form []FormField `yaml:"form,omitempty" json:"form,omitempty"`
}

// Request is a stored request definition. Exactly one collection or
// folder owns it.
type Request struct {
	ID        string   `yaml:"id,omitempty" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Method    string   `yaml:"method" json:"method"`
	URL       string   `yaml:"url" json:"url"`
	Headers   []Header `yaml:"headers,omitempty" json:"headers,omitempty"`
	Params    []Param  `yaml:"params,omitempty" json:"params,omitempty"`
	Body      Body     `yaml:"body,omitempty" json:"body,omitempty"`
	Auth      Auth     `yaml:"auth,omitempty" json:"auth,omitempty"`
	PreScript string   `yaml:"preScript,omitempty" json:"preScript,omitempty"`
	Script    string   `yaml:"script,omitempty" json:"script,omitempty"`
}

// Folder groups requests and nested folders; it may define its own auth
// for requests that inherit.
type Folder struct {
	ID       string     `yaml:"id,omitempty" json:"id"`
	Name     string     `yaml:"name" json:"name"`
	Auth     Auth       `yaml:"auth,omitempty" json:"auth,omitempty"`
	Requests []*Request `yaml:"requests,omitempty" json:"requests,omitempty"`
	Folders  []*Folder  `yaml:"folders,omitempty" json:"folders,omitempty"`
}

// Collection is the root owner of a folder/request tree plus
// collection-scoped variables and auth.
type Collection struct {
	ID        string     `yaml:"id,omitempty" json:"id"`
	Name      string     `yaml:"name" json:"name"`
	Auth      Auth       `yaml:"auth,omitempty" json:"auth,omitempty"`
	Variables []Variable `yaml:"variables,omitempty" json:"variables,omitempty"`
	Requests  []*Request `yaml:"requests,omitempty" json:"requests,omitempty"`
	Folders   []*Folder  `yaml:"folders,omitempty" json:"folders,omitempty"`
}

// EnsureIDs assigns a UUID to every node that is missing one. Documents
// authored by hand usually omit ids.
func (c *Collection) EnsureIDs() {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	for _, r := range c.Requests {
		ensureRequestID(r)
	}
	for _, f := range c.Folders {
		ensureFolderIDs(f)
	}
}

func ensureFolderIDs(f *Folder) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	for _, r := range f.Requests {
		ensureRequestID(r)
	}
	for _, sub := range f.Folders {
		ensureFolderIDs(sub)
	}
}

func ensureRequestID(r *Request) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
}

// FindRequest locates a request by id or name and returns it together
// with its owning folder (nil for root-level requests).
func (c *Collection) FindRequest(idOrName string) (*Request, *Folder) {
	for _, r := range c.Requests {
		if r.ID == idOrName || r.Name == idOrName {
			return r, nil
		}
	}
	var find func(f *Folder) (*Request, *Folder)
	find = func(f *Folder) (*Request, *Folder) {
		for _, r := range f.Requests {
			if r.ID == idOrName || r.Name == idOrName {
				return r, f
			}
		}
		for _, sub := range f.Folders {
			if r, owner := find(sub); r != nil {
				return r, owner
			}
		}
		return nil, nil
	}
	for _, f := range c.Folders {
		if r, owner := find(f); r != nil {
			return r, owner
		}
	}
	return nil, nil
}
