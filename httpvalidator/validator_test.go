package httpvalidator

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasguard/formats"
	"github.com/erraggy/oasguard/oaserrors"
	"github.com/erraggy/oasguard/openapi"
)

const testAPI = "testdata/testapi.yaml"

// okHandler answers {"ok":true}.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
})

var emptyHandler = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

func mustValidator(t *testing.T, opts ...Option) *Validator {
	t.Helper()
	v, err := NewFromFile(testAPI, opts...)
	require.NoError(t, err)
	return v
}

func mustProcess(t *testing.T, v *Validator, req *http.Request, next http.Handler) *Response {
	t.Helper()
	resp, err := v.Process(req, next)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeObject(t *testing.T, resp *Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(resp.Body, &out), string(resp.Body))
	return out
}

// errorList returns the "errors" array of a failure response.
func errorList(t *testing.T, resp *Response) []map[string]any {
	t.Helper()
	var body struct {
		Message string           `json:"message"`
		Errors  []map[string]any `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(resp.Body, &body), string(resp.Body))
	return body.Errors
}

func firstError(t *testing.T, resp *Response) map[string]any {
	t.Helper()
	errs := errorList(t, resp)
	require.NotEmpty(t, errs, string(resp.Body))
	return errs[0]
}

func TestNew(t *testing.T) {
	t.Run("nil document", func(t *testing.T) {
		v, err := New(nil)
		assert.Nil(t, v)
		var cfgErr *oaserrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "document", cfgErr.Option)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFromFile("testdata/not_a_file.yaml")
		assert.ErrorIs(t, err, oaserrors.ErrConfig)
	})

	t.Run("unknown engine", func(t *testing.T) {
		_, err := NewFromFile(testAPI, WithEngine("opis"))
		var cfgErr *oaserrors.ConfigError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "engine", cfgErr.Option)
	})

	t.Run("unknown option name", func(t *testing.T) {
		_, err := NewFromFile(testAPI, WithOptionMap(map[string]any{"invalidOption": true}))
		assert.ErrorIs(t, err, oaserrors.ErrConfig)
	})

	t.Run("defaults", func(t *testing.T) {
		v := mustValidator(t)
		opts := v.Options()
		assert.True(t, opts.ValidateRequest)
		assert.True(t, opts.ValidateResponse)
		assert.True(t, opts.PathNotFoundFatal)
		assert.True(t, opts.MissingFormatFatal)
		assert.False(t, opts.StripResponse)
		assert.Equal(t, int64(DefaultMaxBodySize), opts.MaxBodySize)
		assert.Equal(t, "3.1.0", v.Document().Version)
	})
}

func TestProcess_QueryParameters(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		opts     []Option
		status   int
		errName  string
		errCode  string
		location string
		value    any
		expected any
	}{
		{name: "required missing", target: "/parameters", status: 400, errName: "foo", errCode: "error_required", location: "query"},
		{name: "required present", target: "/parameters?foo=aaa", status: 200},
		{name: "enum", target: "/parameters?foo=ccc", status: 400, errName: "foo", errCode: "error_enum", location: "query", expected: []any{"aaa", "bbb"}},
		{name: "boolean true", target: "/parameters?foo=aaa&boolean=true", status: 200},
		{name: "boolean mixed case", target: "/parameters?foo=aaa&boolean=TrUe", status: 200},
		{name: "boolean false", target: "/parameters?foo=aaa&boolean=false", status: 200},
		{name: "boolean zero", target: "/parameters?foo=aaa&boolean=0", status: 200},
		{name: "boolean one", target: "/parameters?foo=aaa&boolean=1", status: 200},
		{name: "boolean digit", target: "/parameters?foo=aaa&boolean=3", status: 400, errName: "boolean", errCode: "error_type", location: "query", value: "3", expected: "boolean"},
		{name: "boolean word", target: "/parameters?foo=aaa&boolean=hello", status: 400, errName: "boolean", errCode: "error_type", location: "query", value: "hello", expected: "boolean"},
		{name: "additional", target: "/parameters?foo=aaa&bar=aaa", status: 400, errName: "bar", errCode: "error_additional", location: "query"},
		{name: "additional allowed", target: "/parameters?foo=aaa&bar=aaa", opts: []Option{WithAdditionalParameters(true)}, status: 200},
		{name: "form list", target: "/parameters?foo=aaa&list=item1,item3", status: 400, errName: "list.1", errCode: "error_enum", location: "query", value: "item3"},
		{name: "pipe list", target: "/parameters?foo=aaa&listPipe=item1%7Citem2", status: 200},
		{
			name:     "deep object",
			target:   "/parameters?foo=aaa&filter%5Bids%5D%5B0%5D=1&filter%5Bids%5D%5B1%5D=aaa&filter%5Bids%5D%5B2%5D=2",
			status:   400,
			errName:  "filter.ids.1",
			errCode:  "error_type",
			location: "query",
			value:    "aaa",
			expected: "integer",
		},
		{name: "path integers", target: "/path/100/path/200", status: 200},
		{name: "path type", target: "/path/100/path/string", status: 400, errName: "b", errCode: "error_type", location: "path", value: "string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustValidator(t, tt.opts...)
			resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, tt.target, nil), okHandler)
			require.Equal(t, tt.status, resp.StatusCode, string(resp.Body))
			if tt.status == http.StatusOK {
				assert.Equal(t, true, decodeObject(t, resp)["ok"])
				return
			}
			e := firstError(t, resp)
			assert.Equal(t, tt.errName, e["name"])
			assert.Equal(t, tt.errCode, e["code"])
			assert.Equal(t, tt.location, e["location"])
			if tt.value != nil {
				assert.Equal(t, tt.value, e["value"])
			}
			if tt.expected != nil {
				assert.Equal(t, tt.expected, e["expected"])
			}
			if tt.errCode == "error_type" {
				assert.Equal(t, "string", e["used"])
			}
		})
	}
}

func TestProcess_Formats(t *testing.T) {
	custom := WithFormat("string", "customFormat", formats.Func(func(v any) bool { return v == "OK" }))

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{
			name:   "all valid",
			query:  "string=test&integer=10&phone=%2B358501234567&email=foo%40bar.com&between=15&country-code=FI&customFormat=OK",
			status: 200,
		},
		{name: "date", query: "date=2014-12-23", status: 200},
		{name: "impossible date", query: "date=2014-02-31", status: 400},
		{name: "out of range", query: "between=25", status: 400},
		{name: "custom rejects", query: "customFormat=NO", status: 400},
		{name: "country code", query: "country-code=XX", status: 400},
		{name: "email", query: "email=not-an-email", status: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := mustValidator(t, custom)
			resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/formats?"+tt.query, nil), okHandler)
			require.Equal(t, tt.status, resp.StatusCode, string(resp.Body))
			if tt.status != http.StatusOK {
				assert.Equal(t, "error_format", firstError(t, resp)["code"])
			}
		})
	}

	t.Run("AddFormat after construction", func(t *testing.T) {
		v := mustValidator(t)
		v.AddFormat("string", "customFormat", formats.Func(func(v any) bool { return v == "OK" }))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/formats?customFormat=OK", nil), okHandler)
		assert.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
	})
}

func TestProcess_SetDefaultParameters(t *testing.T) {
	var seen atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := QueryParams(r.Context())
		seen.Store(r.URL.Query().Get("default"))
		w.Header().Set("Content-Type", "application/json")
		ok := q["default"] == 50
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": ok})
	})

	v := mustValidator(t)
	resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/parameters?foo=aaa", nil), handler)
	assert.Equal(t, false, decodeObject(t, resp)["ok"])
	assert.Equal(t, "", seen.Load())

	v = mustValidator(t, WithSetDefaultParameters(true))
	resp = mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/parameters?foo=aaa", nil), handler)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decodeObject(t, resp)["ok"])
	assert.Equal(t, "50", seen.Load())
}

func TestProcess_RequestHeaders(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		status  int
		errCode string
	}{
		{name: "missing", status: 400, errCode: "error_required"},
		{name: "pattern", value: "999999", status: 400, errCode: "error_pattern"},
		{name: "valid", value: "TST", status: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/headers", nil)
			if tt.value != "" {
				req.Header.Set("X-Required", tt.value)
			}
			resp := mustProcess(t, mustValidator(t), req, okHandler)
			require.Equal(t, tt.status, resp.StatusCode, string(resp.Body))
			if tt.errCode == "" {
				return
			}
			e := firstError(t, resp)
			assert.Equal(t, "X-Required", e["name"])
			assert.Equal(t, tt.errCode, e["code"])
			assert.Equal(t, "header", e["location"])
		})
	}
}

func TestProcess_RequestBody(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		body := `{"foo":"test","bar":123,"person":{"name":"Donald","email":"aaa@aaa.com"}}`
		resp := mustProcess(t, mustValidator(t), jsonRequest(http.MethodPost, "/request/body", body), okHandler)
		assert.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
	})

	t.Run("errors in document order", func(t *testing.T) {
		body := `{"foo":123,"bar":"test","person":{"email":"aaaaa.com","extra":"hmm"}}`
		for _, engineName := range []string{"jsonschema", "gojsonschema"} {
			t.Run(engineName, func(t *testing.T) {
				v := mustValidator(t, WithEngine(engineName))
				resp := mustProcess(t, v, jsonRequest(http.MethodPost, "/request/body", body), okHandler)
				require.Equal(t, http.StatusBadRequest, resp.StatusCode)
				errs := errorList(t, resp)
				require.Len(t, errs, 5, string(resp.Body))
				codes := make([]any, len(errs))
				names := make([]any, len(errs))
				for i, e := range errs {
					codes[i] = e["code"]
					names[i] = e["name"]
					assert.Equal(t, "body", e["location"])
				}
				assert.Equal(t, []any{"error_type", "error_type", "error_required", "error_format", "error_additional"}, codes)
				assert.Equal(t, []any{"foo", "bar", "person.name", "person.email", "person.extra"}, names)
			})
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		resp := mustProcess(t, mustValidator(t), jsonRequest(http.MethodPost, "/request/body", `{"foo":`), okHandler)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		e := firstError(t, resp)
		assert.Equal(t, "requestBody", e["name"])
		assert.Equal(t, "error_json", e["code"])
	})

	t.Run("missing required body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/request/body", nil)
		resp := mustProcess(t, mustValidator(t), req, okHandler)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		e := firstError(t, resp)
		assert.Equal(t, "requestBody", e["name"])
		assert.Equal(t, "error_required", e["code"])
	})

	t.Run("too large", func(t *testing.T) {
		body := `{"foo":"test","bar":123,"person":{"name":"Donald","email":"aaa@aaa.com"}}`
		v := mustValidator(t, WithMaxBodySize(16))
		resp := mustProcess(t, v, jsonRequest(http.MethodPost, "/request/body", body), okHandler)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "error_max_size", firstError(t, resp)["code"])
	})

	t.Run("handler sees the body", func(t *testing.T) {
		body := `{"foo":"test","bar":123,"person":{"name":"Donald","email":"aaa@aaa.com"}}`
		var got []byte
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			buf := new(bytes.Buffer)
			_, _ = buf.ReadFrom(r.Body)
			got = buf.Bytes()
			okHandler(w, r)
		})
		resp := mustProcess(t, mustValidator(t), jsonRequest(http.MethodPost, "/request/body", body), handler)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, body, string(got))
	})
}

func multipartRequest(t *testing.T, fields map[string]string, fileType string) *http.Request {
	t.Helper()
	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)
	for k, val := range fields {
		require.NoError(t, mw.WriteField(k, val))
	}
	if fileType != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="numbers.txt"`)
		h.Set("Content-Type", fileType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("1\n2\n3\n"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestProcess_Upload(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		req := multipartRequest(t, map[string]string{"id": "100"}, "text/plain")
		resp := mustProcess(t, mustValidator(t), req, okHandler)
		assert.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := multipartRequest(t, map[string]string{"id": "100"}, "image/png")
		resp := mustProcess(t, mustValidator(t), req, okHandler)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		e := firstError(t, resp)
		assert.Equal(t, "file", e["name"])
		assert.Equal(t, "error_content_type", e["code"])
		assert.Equal(t, "text/plain", e["expected"])
		assert.Equal(t, "image/png", e["used"])
	})

	t.Run("missing file", func(t *testing.T) {
		req := multipartRequest(t, map[string]string{"id": "100"}, "")
		resp := mustProcess(t, mustValidator(t), req, okHandler)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		e := firstError(t, resp)
		assert.Equal(t, "file", e["name"])
		assert.Equal(t, "error_required", e["code"])
		assert.Equal(t, "form-data", e["location"])
	})

	t.Run("missing boundary", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("id=100"))
		req.Header.Set("Content-Type", "multipart/form-data")
		resp := mustProcess(t, mustValidator(t), req, okHandler)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "error_form", firstError(t, resp)["code"])
	})
}

func TestProcess_FormData(t *testing.T) {
	form := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/form-data", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req
	}

	t.Run("valid", func(t *testing.T) {
		body := "id=100&text=somestring" +
			"&array%5B0%5D%5Bname%5D=test&array%5B0%5D%5Bvalue%5D=test2" +
			"&array%5B1%5D%5Bname%5D=test&array%5B1%5D%5Bvalue%5D=test2" +
			"&object%5Bname%5D=test&object%5Bvalue%5D=test2"
		resp := mustProcess(t, mustValidator(t), form(body), okHandler)
		assert.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
	})

	t.Run("errors", func(t *testing.T) {
		body := "id=invalid-type&arr%5B0%5D%5Bname%5D=test&object%5Bname%5D=test"
		resp := mustProcess(t, mustValidator(t), form(body), okHandler)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		got := map[string]any{}
		for _, e := range errorList(t, resp) {
			assert.Equal(t, "form-data", e["location"])
			got[e["name"].(string)] = e["code"]
		}
		assert.Equal(t, map[string]any{
			"array":        "error_required",
			"id":           "error_type",
			"object.value": "error_required",
			"text":         "error_required",
		}, got)
	})
}

func TestProcess_Responses(t *testing.T) {
	t.Run("example fails additional", func(t *testing.T) {
		v := mustValidator(t, WithExampleResponse(true))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/response/example", nil), emptyHandler)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		e := firstError(t, resp)
		assert.Equal(t, "extra", e["name"])
		assert.Equal(t, "error_additional", e["code"])
	})

	t.Run("example merges request body", func(t *testing.T) {
		v := mustValidator(t, WithExampleResponse(true))
		resp := mustProcess(t, v, jsonRequest(http.MethodPost, "/response/example", `{"foo":"bar"}`), emptyHandler)
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(resp.Body))
		body := decodeObject(t, resp)
		assert.Equal(t, "bar", body["foo"])
		assert.Equal(t, float64(100), body["bar"])
		assert.Equal(t, "application/json;charset=utf-8", resp.Header.Get("Content-Type"))
	})

	t.Run("example list stripped", func(t *testing.T) {
		v := mustValidator(t, WithExampleResponse(true), WithStripResponse(true))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/response/example/list", nil), emptyHandler)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
		var list []map[string]any
		require.NoError(t, json.Unmarshal(resp.Body, &list))
		require.Len(t, list, 1)
		assert.Equal(t, map[string]any{"foo": "test", "bar": float64(100)}, list[0])
	})

	t.Run("strip", func(t *testing.T) {
		v := mustValidator(t, WithExampleResponse(true), WithStripResponse(true))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/response/example", nil), emptyHandler)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
		assert.JSONEq(t, `{"foo":"test","bar":100}`, string(resp.Body))
	})

	t.Run("empty body", func(t *testing.T) {
		resp := mustProcess(t, mustValidator(t), httptest.NewRequest(http.MethodGet, "/response/example", nil), emptyHandler)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		e := firstError(t, resp)
		assert.Equal(t, "responseBody", e["name"])
		assert.Equal(t, "error_required", e["code"])
	})

	t.Run("handler body invalid", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":"yes"}`))
		})
		resp := mustProcess(t, mustValidator(t), httptest.NewRequest(http.MethodGet, "/parameters?foo=aaa", nil), handler)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		e := firstError(t, resp)
		assert.Equal(t, "ok", e["name"])
		assert.Equal(t, "error_type", e["code"])
		assert.Equal(t, "body", e["location"])
	})

	t.Run("response validation off", func(t *testing.T) {
		v := mustValidator(t, WithValidateResponse(false))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/response/example", nil), emptyHandler)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Body)
	})

	t.Run("no content", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
		resp := mustProcess(t, mustValidator(t), httptest.NewRequest(http.MethodDelete, "/no-content", nil), handler)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}

func TestProcess_ResponseHeaders(t *testing.T) {
	t.Run("missing required header", func(t *testing.T) {
		v := mustValidator(t, WithValidateResponseHeaders(true))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/missing/header", nil), okHandler)
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		e := firstError(t, resp)
		assert.Equal(t, "X-Response-Id", e["name"])
		assert.Equal(t, "error_required", e["code"])
		assert.Equal(t, "header", e["location"])
	})

	t.Run("strip undeclared headers", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Response-Id", "abc")
			w.Header().Set("X-Debug", "1")
			okHandler(w, r)
		})
		v := mustValidator(t, WithValidateResponseHeaders(true), WithStripResponseHeaders(true))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/missing/header", nil), handler)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
		assert.Equal(t, "abc", resp.Header.Get("X-Response-Id"))
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.Empty(t, resp.Header.Get("X-Debug"))
	})
}

func TestProcess_Hooks(t *testing.T) {
	t.Run("before handler", func(t *testing.T) {
		hook := func(r *http.Request, errs []ValidationError) (*http.Request, error) {
			r = r.Clone(r.Context())
			r.Header.Set("X-Error", errs[0].Code)
			return r, nil
		}
		var fromContext []ValidationError
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromContext = ErrorsFromContext(r.Context())
			w.Header().Set("X-Error", r.Header.Get("X-Error"))
			okHandler(w, r)
		})
		v := mustValidator(t, WithBeforeHandler(hook))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/parameters", nil), handler)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(resp.Body))
		assert.Equal(t, "error_required", resp.Header.Get("X-Error"))
		require.Len(t, fromContext, 1)
		assert.Equal(t, "foo", fromContext[0].Name)
	})

	t.Run("before handler returns nil", func(t *testing.T) {
		cause := errors.New("rejected")
		hook := func(*http.Request, []ValidationError) (*http.Request, error) { return nil, cause }
		v := mustValidator(t, WithBeforeHandler(hook))
		_, err := v.Process(httptest.NewRequest(http.MethodGet, "/parameters", nil), okHandler)
		assert.ErrorIs(t, err, oaserrors.ErrBeforeHandler)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("before handler error with request is logged", func(t *testing.T) {
		hook := func(r *http.Request, _ []ValidationError) (*http.Request, error) {
			return r, errors.New("soft failure")
		}
		buf := new(bytes.Buffer)
		logger := NewSlogAdapter(slog.New(slog.NewTextHandler(buf, nil)))
		v := mustValidator(t, WithBeforeHandler(hook), WithLogger(logger))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/parameters", nil), okHandler)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, buf.String(), "before handler error ignored")
		assert.Contains(t, buf.String(), "soft failure")
	})

	t.Run("error handler", func(t *testing.T) {
		custom := func(status int, _ string, errs []ValidationError) *Response {
			return ErrorResponse(status, "custom error", errs)
		}
		v := mustValidator(t, WithErrorHandler(custom))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/parameters", nil), okHandler)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "custom error", decodeObject(t, resp)["message"])
		e := firstError(t, resp)
		assert.Equal(t, "foo", e["name"])
		assert.Equal(t, "error_required", e["code"])
	})

	t.Run("validate error does not dispatch", func(t *testing.T) {
		var calls atomic.Int32
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			okHandler(w, r)
		})
		v := mustValidator(t, WithValidateError(true))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/parameters", nil), handler)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Zero(t, calls.Load())
	})

	t.Run("request validation off", func(t *testing.T) {
		v := mustValidator(t, WithValidateRequest(false))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/parameters", nil), okHandler)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestProcess_Routing(t *testing.T) {
	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/does/not/exist", nil)
		req.Header.Set("Access-Control-Request-Method", "GET")
		resp := mustProcess(t, mustValidator(t), req, okHandler)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, decodeObject(t, resp)["ok"])
	})

	t.Run("path not found", func(t *testing.T) {
		_, err := mustValidator(t).Process(httptest.NewRequest(http.MethodGet, "/not/defined", nil), okHandler)
		var notFound *oaserrors.PathNotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "/not/defined", notFound.Path)
		assert.Equal(t, http.MethodGet, notFound.Method)
	})

	t.Run("path not found passes through", func(t *testing.T) {
		v := mustValidator(t, WithPathNotFoundFatal(false))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/not/defined", nil), okHandler)
		assert.Equal(t, true, decodeObject(t, resp)["ok"])
	})

	t.Run("missing format", func(t *testing.T) {
		_, err := mustValidator(t).Process(httptest.NewRequest(http.MethodGet, "/missing/format?test=foo", nil), okHandler)
		assert.ErrorIs(t, err, oaserrors.ErrMissingFormat)
	})

	t.Run("missing format ignored", func(t *testing.T) {
		v := mustValidator(t, WithMissingFormatFatal(false))
		resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/missing/format?test=foo", nil), okHandler)
		assert.Equal(t, true, decodeObject(t, resp)["ok"])
	})
}

func TestMiddleware(t *testing.T) {
	v := mustValidator(t)
	srv := httptest.NewServer(v.Middleware(okHandler))
	defer srv.Close()

	tests := []struct {
		path   string
		status int
	}{
		{path: "/parameters?foo=aaa", status: http.StatusOK},
		{path: "/parameters", status: http.StatusBadRequest},
		{path: "/not/defined", status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				assert.Equal(t, "application/json;charset=utf-8", resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestNew_FromDocument(t *testing.T) {
	doc, err := openapi.Parse([]byte(`
openapi: 3.0.3
info: {title: Inline, version: "1"}
paths:
  /pets/{id}:
    get:
      parameters:
        - {name: id, in: path, required: true, schema: {type: integer, minimum: 1}}
      responses:
        "200":
          description: OK
`), "inline")
	require.NoError(t, err)

	for _, engineName := range []string{"jsonschema", "gojsonschema"} {
		t.Run(engineName, func(t *testing.T) {
			v, err := New(doc, WithEngine(engineName))
			require.NoError(t, err)

			resp := mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/pets/0", nil), okHandler)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			e := firstError(t, resp)
			assert.Equal(t, "id", e["name"])
			assert.Equal(t, "error_minimum", e["code"])

			resp = mustProcess(t, v, httptest.NewRequest(http.MethodGet, "/pets/7", nil), okHandler)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}
