package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"student-records/internal/httputil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
	Age  *int   `json:"age"`
}

func decode(body string) (payload, error) {
	var p payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := httputil.DecodeJSON(httptest.NewRecorder(), req, &p)
	return p, err
}

func TestDecodeJSON(t *testing.T) {
	p, err := decode(`{"name":"Alice","age":0}`)
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.Name)
	require.NotNil(t, p.Age)
	assert.Equal(t, 0, *p.Age)

	cases := map[string]string{
		"":                               "request body must not be empty",
		`{"name":`:                       "request body contains malformed JSON",
		`{"name":"A"} {"name":"B"}`:      "request body must contain a single JSON object",
		`{"name":"A","extra":1}`:         `unknown field "extra"`,
		`{"name":"A","age":"twenty-one"}`: "invalid value for field age",
	}
	for body, want := range cases {
		_, err := decode(body)
		require.Error(t, err, body)
		assert.Equal(t, want, err.Error(), body)
	}
}

func TestRespondWithError(t *testing.T) {
	w := httptest.NewRecorder()
	httputil.RespondWithError(w, http.StatusNotFound, "Student not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Student not found"}`, w.Body.String())
}

func TestRespondWithJSON_Unmarshalable(t *testing.T) {
	w := httptest.NewRecorder()
	httputil.RespondWithJSON(w, http.StatusOK, map[string]any{"ch": make(chan int)})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}
