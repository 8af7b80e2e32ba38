package llm

import (
	"context"
	"errors"
	"testing"
)

func TestWrapWithMiddleware_Order(t *testing.T) {
	var calls []string
	base := ClientFunc(func(ctx context.Context, req *Request) (*Response, error) {
		calls = append(calls, "client:"+req.Model)
		return &Response{StopReason: "stop"}, nil
	})

	mw := func(name string) Middleware {
		return MiddlewareFunc{
			BeforeRequestFunc: func(ctx context.Context, req *Request) (*Request, error) {
				calls = append(calls, "before:"+name)
				return req, nil
			},
			AfterResponseFunc: func(ctx context.Context, req *Request, resp *Response) (*Response, error) {
				calls = append(calls, "after:"+name)
				return resp, nil
			},
		}
	}

	client := WrapWithMiddleware(base, mw("a"), mw("b"))
	if _, err := client.Synchronous(context.Background(), &Request{Model: "m"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := []string{"before:a", "before:b", "client:m", "after:b", "after:a"}
	if len(calls) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, calls)
	}
	for i := range expected {
		if calls[i] != expected[i] {
			t.Errorf("Call %d: expected %s, got %s", i, expected[i], calls[i])
		}
	}
}

func TestWrapWithMiddleware_OnError(t *testing.T) {
	boom := errors.New("boom")
	base := ClientFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return nil, boom
	})

	var seen error
	client := WrapWithMiddleware(base, MiddlewareFunc{
		OnErrorFunc: func(ctx context.Context, req *Request, err error) error {
			seen = err
			return nil
		},
	})

	_, err := client.Synchronous(context.Background(), &Request{})
	if !errors.Is(err, boom) {
		t.Errorf("Expected original error, got %v", err)
	}
	if !errors.Is(seen, boom) {
		t.Errorf("Expected middleware to observe error, got %v", seen)
	}
}

func TestWrapWithMiddleware_NoMiddleware(t *testing.T) {
	base := ClientFunc(func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{}, nil
	})
	if _, ok := WrapWithMiddleware(base).(ClientFunc); !ok {
		t.Error("Expected client to be returned unwrapped")
	}
}
