package gqlgate

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// Request is a GraphQL request in the GraphQL-over-HTTP envelope.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// requestError is a transport-level parse failure with the HTTP status it
// should map to. GraphQL document errors are not requestErrors; those are
// reported in-band by the executor.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(msg string) *requestError {
	return &requestError{status: http.StatusBadRequest, message: msg}
}

type gzipReadCloser struct {
	*gzip.Reader
	underlying io.Closer
}

func (g gzipReadCloser) Close() error {
	if err := g.Reader.Close(); err != nil {
		return err
	}
	return g.underlying.Close()
}

// parseRequest extracts one request or a batch from r. Exactly one of the
// first two return values is meaningful when the error is nil.
func parseRequest(r *http.Request, maxBody int64, maxBatch int) (Request, []Request, *requestError) {
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return Request{}, nil, badRequest(errors.Wrap(err, "invalid gzip body").Error())
		}
		r.Body = gzipReadCloser{zr, r.Body}
	}

	if r.Method == http.MethodGet {
		return parseQueryString(r)
	}

	ct := r.Header.Get("Content-Type")
	mediaType := ct
	if ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return Request{}, nil, badRequest("unparsable Content-Type")
		}
		mediaType = mt
	}

	switch mediaType {
	case "", "application/json":
		body, rerr := readBody(r, maxBody)
		if rerr != nil {
			return Request{}, nil, rerr
		}
		return parseJSONBody(body, maxBatch)
	case "application/graphql":
		body, rerr := readBody(r, maxBody)
		if rerr != nil {
			return Request{}, nil, rerr
		}
		q := strings.TrimSpace(string(body))
		if q == "" {
			return Request{}, nil, badRequest("missing query")
		}
		return Request{Query: q, Variables: map[string]any{}}, nil, nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return Request{}, nil, badRequest("invalid form body")
		}
		req, rerr := requestFromValues(r.PostForm.Get("query"), r.PostForm.Get("operationName"), r.PostForm.Get("variables"))
		if rerr != nil {
			return Request{}, nil, rerr
		}
		return req, nil, nil
	default:
		return Request{}, nil, &requestError{
			status:  http.StatusUnsupportedMediaType,
			message: "unsupported Content-Type; use application/json for GraphQL requests",
		}
	}
}

func parseQueryString(r *http.Request) (Request, []Request, *requestError) {
	q := r.URL.Query()
	req, rerr := requestFromValues(q.Get("query"), q.Get("operationName"), q.Get("variables"))
	if rerr != nil {
		return Request{}, nil, rerr
	}
	return req, nil, nil
}

func requestFromValues(query, operationName, variables string) (Request, *requestError) {
	if query == "" {
		return Request{}, badRequest("missing query")
	}
	vars := map[string]any{}
	if variables != "" {
		d := json.NewDecoder(strings.NewReader(variables))
		d.UseNumber()
		if err := d.Decode(&vars); err != nil {
			return Request{}, badRequest("invalid variables JSON")
		}
	}
	return Request{Query: query, OperationName: operationName, Variables: vars}, nil
}

func readBody(r *http.Request, maxBody int64) ([]byte, *requestError) {
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, badRequest("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return nil, &requestError{status: http.StatusRequestEntityTooLarge, message: "request body too large"}
	}
	return body, nil
}

func parseJSONBody(body []byte, maxBatch int) (Request, []Request, *requestError) {
	trimmed := strings.TrimLeftFunc(string(body), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	if strings.HasPrefix(trimmed, "[") {
		var batch []Request
		if err := decodeJSON(body, &batch); err != nil {
			return Request{}, nil, badRequest("invalid JSON body")
		}
		if len(batch) == 0 {
			return Request{}, nil, badRequest("empty batch")
		}
		if maxBatch > 0 && len(batch) > maxBatch {
			return Request{}, nil, badRequest("batch too large")
		}
		for i := range batch {
			if batch[i].Variables == nil {
				batch[i].Variables = map[string]any{}
			}
		}
		return Request{}, batch, nil
	}

	var req Request
	if err := decodeJSON(body, &req); err != nil {
		return Request{}, nil, badRequest("invalid JSON body")
	}
	if req.Query == "" {
		return Request{}, nil, badRequest("missing query")
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil, nil
}

func decodeJSON(body []byte, v any) error {
	d := json.NewDecoder(strings.NewReader(string(body)))
	d.UseNumber()
	return d.Decode(v)
}
