package extract

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTMLTextSkipsScriptsAndKeepsBlocks(t *testing.T) {
	page := `<html><head><title>t</title><style>body{}</style></head>
<body><nav>menu</nav><h1>Rising  demand</h1><p>Matcha <b>lattes</b> are up.</p>
<script>var x = "hidden";</script><p>Second&nbsp;line</p></body></html>`

	text, err := HTMLText(strings.NewReader(page))
	require.NoError(t, err)
	require.Equal(t, "Rising demand\nMatcha lattes are up.\nSecond line", text)
}

func TestExtractFetchesHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<p>hello</p><p>world</p>")
	}))
	defer srv.Close()

	text, err := NewHTTPExtractor(Options{}).Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "hello\nworld", text)
}

func TestExtractRejectsErrorsAndBinary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	e := NewHTTPExtractor(Options{})
	_, err := e.Extract(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	_, err = e.Extract(context.Background(), srv.URL+"/doc.pdf")
	require.Error(t, err)
	_, err = e.Extract(context.Background(), "ftp://example.com")
	require.Error(t, err)
}
