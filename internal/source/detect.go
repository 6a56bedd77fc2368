package source

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// MaxDocumentBytes caps a fetched or read document.
const MaxDocumentBytes = 20 << 20

// DefaultFetchTimeout bounds a URL fetch.
const DefaultFetchTimeout = 30 * time.Second

// userAgent is sent with every fetch.
const userAgent = "ragchat/1.0 (document ingestion)"

// extensionKinds maps lowercase file extensions to document kinds.
var extensionKinds = map[string]Kind{
	".txt":      KindText,
	".md":       KindText,
	".markdown": KindText,
	".rst":      KindText,
	".csv":      KindText,
	".json":     KindText,
	".html":     KindMarkup,
	".htm":      KindMarkup,
	".xhtml":    KindMarkup,
	".pdf":      KindPDF,
}

// Detect infers a document kind. The declared content type wins, then the
// extension of name, then a sniff of the first bytes.
func Detect(name, contentType string, head []byte) Kind {
	if k, ok := kindFromContentType(contentType); ok {
		return k
	}
	if k, ok := extensionKinds[strings.ToLower(extOf(name))]; ok {
		return k
	}
	if len(head) > 0 {
		if k, ok := kindFromContentType(http.DetectContentType(head)); ok {
			return k
		}
	}
	return KindText
}

func kindFromContentType(ct string) (Kind, bool) {
	if ct == "" {
		return "", false
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", false
	}
	switch {
	case mt == "application/pdf":
		return KindPDF, true
	case mt == "text/html", mt == "application/xhtml+xml":
		return KindMarkup, true
	case strings.HasPrefix(mt, "text/"):
		return KindText, true
	}
	return "", false
}

// extOf returns the extension of a URL path or file path.
func extOf(name string) string {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && u.Host != "" {
		return path.Ext(u.Path)
	}
	return filepath.Ext(name)
}

// FetchURL downloads rawURL and returns the matching Source variant. A nil
// client uses one with DefaultFetchTimeout.
func FetchURL(ctx context.Context, client *http.Client, rawURL string) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("source: %q is not an http(s) URL", rawURL)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("source: creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html, text/plain, application/pdf;q=0.9, */*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: unexpected status %d for %s", resp.StatusCode, rawURL)
	}

	body, err := readLimited(resp.Body, MaxDocumentBytes)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", rawURL, err)
	}

	return New(Detect(rawURL, resp.Header.Get("Content-Type"), body), rawURL, body)
}

// FromFile reads path and returns the matching Source variant.
func FromFile(p string) (Source, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", p, err)
	}
	defer f.Close()

	data, err := readLimited(f, MaxDocumentBytes)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", p, err)
	}
	return New(Detect(p, "", data), filepath.Base(p), data)
}
