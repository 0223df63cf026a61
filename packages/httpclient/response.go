package httpclient

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
	Size       int64
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// JSON evaluates a gjson path against the body; an empty path returns
// the whole document.
func (r *Response) JSON(path string) gjson.Result {
	if path == "" {
		return gjson.ParseBytes(r.Body)
	}
	return gjson.GetBytes(r.Body, path)
}

func (r *Response) IsValidJSON() bool {
	return gjson.ValidBytes(r.Body)
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
