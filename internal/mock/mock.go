// Package mock provides a connection.Transport backed by testify/mock.
package mock

import (
	"context"

	testifymock "github.com/stretchr/testify/mock"

	"github.com/blobstash/blobstash.go/pkg/connection"
)

type Transport struct {
	testifymock.Mock
}

func Create() *Transport {
	return &Transport{}
}

func (t *Transport) Request(ctx context.Context, req *connection.Request) ([]byte, error) {
	args := t.Called(ctx, req)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

// Expect registers the response for requests matching method and path.
func (t *Transport) Expect(method, path string, body []byte, err error) *testifymock.Call {
	return t.On("Request", testifymock.Anything, Match(method, path)).Return(body, err)
}

// ExpectJSON is Expect with a literal JSON body.
func (t *Transport) ExpectJSON(method, path, body string) *testifymock.Call {
	return t.Expect(method, path, []byte(body), nil)
}

// Match returns an argument matcher for requests with method and path.
func Match(method, path string) any {
	return testifymock.MatchedBy(func(r *connection.Request) bool {
		return r.Method == method && r.Path == path
	})
}

// Requests returns the requests received for method and path, in order.
func (t *Transport) Requests(method, path string) []*connection.Request {
	var out []*connection.Request
	for _, call := range t.Calls {
		if call.Method != "Request" {
			continue
		}
		r, ok := call.Arguments.Get(1).(*connection.Request)
		if ok && r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}
