package collection

type AuthType string

const (
	AuthNone    AuthType = "none"
	AuthBearer  AuthType = "bearer"
	AuthBasic   AuthType = "basic"
	AuthAPIKey  AuthType = "apikey"
	AuthInherit AuthType = "inherit"
)

type APIKeyLocation string

const (
	AddToHeader APIKeyLocation = "header"
	AddToQuery  APIKeyLocation = "query"
)

// Auth is a tagged variant; only the fields for the active Type are
// meaningful. Inherit is only meaningful on a request.
type Auth struct {
	Type     AuthType       `yaml:"type,omitempty" json:"type,omitempty"`
	Token    string         `yaml:"token,omitempty" json:"token,omitempty"`
	Username string         `yaml:"username,omitempty" json:"username,omitempty"`
	Password string         `yaml:"password,omitempty" json:"password,omitempty"`
	Key      string         `yaml:"key,omitempty" json:"key,omitempty"`
	Value    string         `yaml:"value,omitempty" json:"value,omitempty"`
	AddTo    APIKeyLocation `yaml:"addTo,omitempty" json:"addTo,omitempty"`
}

func (a Auth) IsNone() bool {
	return a.Type == "" || a.Type == AuthNone
}

// EffectiveAuth computes the auth a request is sent with. Inherit defers
// to the supplied inherited auth unless that is itself none, in which
// case the request auth is used verbatim.
func EffectiveAuth(requestAuth, inherited Auth) Auth {
	if requestAuth.Type == AuthInherit && !inherited.IsNone() {
		return inherited
	}
	return requestAuth
}

// InheritedAuth returns the auth a request inside the given folder
// inherits: the folder's own auth when set, else the collection's. The
// lookup is one level deep; each folder stores its direct auth and the
// caller knows which folder owns the request.
func InheritedAuth(c *Collection, owner *Folder) Auth {
	if owner != nil && !owner.Auth.IsNone() {
		return owner.Auth
	}
	return c.Auth
}
