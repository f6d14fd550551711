package endpoints

import (
	"net/http"

	httptransport "github.com/go-kit/kit/transport/http"
)

var (
	_ httptransport.Headerer = (*MultResponse)(nil)

	_ httptransport.StatusCoder = (*MultResponse)(nil)
)

// MultResponse collects the response values for the Mult method.
type MultResponse struct {
	Rs  float64 `json:"rs"`
	Err error   `json:"-"`
}

func (r MultResponse) StatusCode() int {
	return http.StatusOK
}

func (r MultResponse) Headers() http.Header {
	return http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}}
}
