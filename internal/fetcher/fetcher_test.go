package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchPrefersOpenGraph(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html><head>
		<title>Plain   title</title>
		<meta property="og:title" content="Graph title">
		<meta name="description" content="Plain description">
		<script>var title = "nope";</script>
	</head><body><h1>Body</h1></body></html>`)

	page, err := Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Graph title", page.Title)
	assert.Equal(t, "Plain description", page.Description)
	assert.Equal(t, srv.URL, page.URL)
}

func TestFetchFallsBackToTitle(t *testing.T) {
	srv := serve(t, http.StatusOK, `<html><head><title>
		Effective   Go
	</title></head></html>`)

	page, err := Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Effective Go", page.Title)
	assert.Empty(t, page.Description)
}

func TestFetchErrors(t *testing.T) {
	srv := serve(t, http.StatusNotFound, "missing")
	_, err := Fetch(context.Background(), srv.URL)
	assert.Error(t, err)

	untitled := serve(t, http.StatusOK, "<html><body>no head</body></html>")
	_, err = Fetch(context.Background(), untitled.URL)
	assert.Error(t, err)

	_, err = Fetch(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://go.dev"))
	assert.True(t, IsURL(" www.go.dev"))
	assert.False(t, IsURL("Effective Go"))
}
