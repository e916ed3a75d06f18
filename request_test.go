package gqlgate

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRequestForms(t *testing.T) {
	cases := []struct {
		name    string
		req     func() *http.Request
		want    Request
		wantErr bool
	}{
		{
			name: "get with variables and operation name",
			req: func() *http.Request {
				return httptest.NewRequest("GET",
					`/graphql?query=query+Q($a:Int){f(a:$a)}&operationName=Q&variables={"a":1}`, nil)
			},
			want: Request{
				Query:         "query Q($a:Int){f(a:$a)}",
				OperationName: "Q",
				Variables:     map[string]any{"a": json.Number("1")},
			},
		},
		{
			name: "post json defaults nil variables to empty map",
			req: func() *http.Request {
				r := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"query":"{f}"}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			want: Request{Query: "{f}", Variables: map[string]any{}},
		},
		{
			name: "post raw graphql",
			req: func() *http.Request {
				r := httptest.NewRequest("POST", "/graphql", strings.NewReader("\n{f}\n"))
				r.Header.Set("Content-Type", "application/graphql; charset=utf-8")
				return r
			},
			want: Request{Query: "{f}", Variables: map[string]any{}},
		},
		{
			name: "post json rejects missing query",
			req: func() *http.Request {
				r := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"operationName":"Q"}`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			wantErr: true,
		},
		{
			name: "post json rejects truncated body",
			req: func() *http.Request {
				r := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"query":`))
				r.Header.Set("Content-Type", "application/json")
				return r
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, batch, rerr := parseRequest(tc.req(), 0, 0)
			if tc.wantErr {
				if rerr == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if rerr != nil {
				t.Fatalf("unexpected error: %v", rerr)
			}
			if batch != nil {
				t.Fatalf("unexpected batch: %+v", batch)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRequestBatch(t *testing.T) {
	r := httptest.NewRequest("POST", "/graphql", strings.NewReader(
		`[{"query":"{a}"},{"query":"{b}","variables":{"x":true}}]`))
	r.Header.Set("Content-Type", "application/json")

	_, batch, rerr := parseRequest(r, 0, 0)
	if rerr != nil {
		t.Fatalf("unexpected error: %v", rerr)
	}
	want := []Request{
		{Query: "{a}", Variables: map[string]any{}},
		{Query: "{b}", Variables: map[string]any{"x": true}},
	}
	if diff := cmp.Diff(want, batch); diff != "" {
		t.Fatalf("batch mismatch (-want +got):\n%s", diff)
	}
}
