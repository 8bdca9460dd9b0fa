package preview

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/amti/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newServer(t *testing.T, template string, lines ...string) *Server {
	t.Helper()
	root := t.TempDir()
	tpl := testutil.WriteFile(t, root, "question.xml.j2", template)
	data := testutil.WriteData(t, root, lines...)
	return New(tpl, data, nil)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	s.Router().ServeHTTP(resp, req)
	return resp
}

func TestPreviewByIndex(t *testing.T) {
	s := newServer(t, testutil.QuestionTemplate, `{"text": "first"}`, `{"text": "a < b"}`)

	resp := get(t, s, "/hits/1/")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "<p>a < b</p>")
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/html")
}

func TestPreviewQueryParameter(t *testing.T) {
	s := newServer(t, testutil.QuestionTemplate, `{"text": "first"}`, `{"text": "second"}`)

	resp := get(t, s, "/")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "<p>first</p>")

	resp = get(t, s, "/?id=1")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "<p>second</p>")
}

func TestPreviewOutOfRange(t *testing.T) {
	s := newServer(t, testutil.QuestionTemplate, `{"text": "only"}`)

	for _, path := range []string{"/hits/1/", "/?id=7", "/hits/-1/", "/hits/abc/"} {
		assert.Equal(t, http.StatusNotFound, get(t, s, path).Code, path)
	}
}

func TestPreviewTemplateError(t *testing.T) {
	s := newServer(t, "{% if %}", `{"text": "x"}`)
	assert.Equal(t, http.StatusInternalServerError, get(t, s, "/hits/0/").Code)
}

func TestPreviewBadDataLine(t *testing.T) {
	s := newServer(t, testutil.QuestionTemplate, `not json`)
	assert.Equal(t, http.StatusInternalServerError, get(t, s, "/hits/0/").Code)
}

func TestPreviewRereadsTemplate(t *testing.T) {
	root := t.TempDir()
	tpl := testutil.WriteFile(t, root, "question.xml.j2", "<p>{{ text }}</p>")
	data := testutil.WriteData(t, root, `{"text": "x"}`)
	s := New(tpl, data, nil)

	assert.Contains(t, get(t, s, "/hits/0/").Body.String(), "<p>x</p>")
	testutil.WriteFile(t, root, "question.xml.j2", "<h1>{{ text }}</h1>")
	assert.Contains(t, get(t, s, "/hits/0/").Body.String(), "<h1>x</h1>")
}

func TestListenAndServeShutsDownOnCancel(t *testing.T) {
	s := newServer(t, testutil.QuestionTemplate, `{"text": "live"}`)
	ctx, cancel := context.WithCancel(context.Background())

	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.ListenAndServe(ctx, "127.0.0.1:0", func(addr string) { addrCh <- addr })
	}()

	addr := <-addrCh
	resp, err := http.Get("http://" + addr + "/hits/0/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "<p>live</p>")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRenderDirect(t *testing.T) {
	s := newServer(t, testutil.QuestionTemplate, `{"text": "x"}`)
	out, err := s.Render(0)
	require.NoError(t, err)
	assert.Contains(t, out, "<p>x</p>")

	_, err = s.Render(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}
