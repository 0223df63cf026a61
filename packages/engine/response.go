package engine

import (
	"time"

	"github.com/courierhq/courier/packages/httpclient"
)

// ApiResponse is the outcome of one request execution. A zero Status
// means the request never produced an HTTP response: either a pre-script
// error (PreScriptError set, transport never called) or a transport
// failure (ErrorCode set).
type ApiResponse struct {
	Status     int                  `json:"status"`
	StatusText string               `json:"statusText"`
	Headers    map[string]string    `json:"headers,omitempty"`
	Body       string               `json:"body,omitempty"`
	Time       time.Duration        `json:"time"`
	Size       int64                `json:"size"`
	ErrorCode  httpclient.ErrorCode `json:"errorCode,omitempty"`

	ScriptOutput    string `json:"scriptOutput,omitempty"`
	ScriptError     string `json:"scriptError,omitempty"`
	PreScriptOutput string `json:"preScriptOutput,omitempty"`
	PreScriptError  string `json:"preScriptError,omitempty"`
}

// IsSuccess reports whether the HTTP status counts as a success for run
// accounting. Script outcomes never influence it.
func (r *ApiResponse) IsSuccess() bool {
	return r.Status >= 200 && r.Status < 400
}
