// Package assets serves the static HTML/JS documents behind the logs://,
// recorder:// and worker:// feature channels (spec §4.9 / C9): the
// embedded logs viewer, recorder control UI, and worker script. HTML
// documents are minified before caching; the worker script is returned
// byte for byte as embedded.
//
// Grounded on aofei-air's coffer.go: a checksum-keyed fastcache.Cache
// holding each asset's bytes, invalidated by an fsnotify watcher. The
// teacher's coffer reads arbitrary files under a configurable
// AssetRoot; this package instead ships the assets embedded in the
// binary via go:embed and only falls back to fsnotify-watched disk
// files when an override directory is configured, for local iteration
// on the viewer pages without a rebuild.
package assets

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"embed"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/aofei/mimesniffer"
	"github.com/fsnotify/fsnotify"
	"github.com/tdewolff/minify/v2"
	minifyhtml "github.com/tdewolff/minify/v2/html"
	minifyjs "github.com/tdewolff/minify/v2/js"
)

//go:embed static
var embedded embed.FS

// minifiableMIMEs lists the content types Coffer minifies before
// caching; everything else is cached as read.
var minifiableMIMEs = map[string]bool{
	"text/html": true,
}

// Asset is one cached static document.
type Asset struct {
	Name           string
	MIMEType       string
	Content        []byte
	GzippedContent []byte
}

// Coffer caches the static assets this proxy serves, keyed by content
// checksum so repeated requests for the same bytes never re-minify or
// re-gzip. overrideDir, if non-empty, is watched via fsnotify: files
// placed there take precedence over the embedded defaults of the same
// name and are invalidated from the cache on write.
type Coffer struct {
	overrideDir string
	cache       *fastcache.Cache
	assets      sync.Map // name -> *Asset
	minifier    *minify.M
	minifyOnce  sync.Once
	watcher     *fsnotify.Watcher
}

// NewCoffer builds a Coffer with maxMemoryBytes of cache capacity. If
// overrideDir is non-empty it is watched for changes; a watcher failure
// is non-fatal — overrides are simply unavailable.
func NewCoffer(maxMemoryBytes int, overrideDir string) *Coffer {
	c := &Coffer{
		overrideDir: overrideDir,
		cache:       fastcache.New(maxMemoryBytes),
	}

	if overrideDir == "" {
		return c
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return c
	}
	c.watcher = watcher
	if err := watcher.Add(overrideDir); err == nil {
		go c.watchOverrides()
	}
	return c
}

func (c *Coffer) watchOverrides() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			// Content-addressed fastcache entries never go stale — only
			// the name->asset lookup needs evicting so the next Get
			// re-reads the overridden file from disk.
			c.assets.Delete(filepath.Base(event.Name))
		case _, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func checksum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// Get returns the named asset ("worker.js", "logs.html", or
// "recorder.html"), minified and gzip-precompressed as appropriate for
// its MIME type. The second return is false if no such asset exists.
func (c *Coffer) Get(name string) (*Asset, bool) {
	if a, ok := c.assets.Load(name); ok {
		return a.(*Asset), true
	}

	raw, ok := c.read(name)
	if !ok {
		return nil, false
	}

	mimeType := mime.TypeByExtension(filepath.Ext(name))
	if mimeType == "" {
		mimeType = mimesniffer.Sniff(raw)
	}
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}

	// Keyed on the raw content's checksum, not the asset name: two names
	// with identical bytes (or an override reverted back to the embedded
	// original) share one cache entry, and re-minify/re-gzip is skipped
	// whenever that entry is already present.
	rawSum := checksum(raw)
	contentKey := append(append([]byte(nil), rawSum...), "|content"...)
	gzipKey := append(append([]byte(nil), rawSum...), "|gzip"...)

	var content []byte
	if cached, ok := c.cache.HasGet(nil, contentKey); ok {
		content = cached
	} else {
		content = raw
		if minifiableMIMEs[mimeType] {
			if minified, err := c.minify(mimeType, raw); err == nil {
				content = minified
			}
		}
		c.cache.Set(contentKey, content)
	}

	var gzipped []byte
	if cached, ok := c.cache.HasGet(nil, gzipKey); ok {
		gzipped = cached
	} else if buf, err := gzipBytes(content); err == nil {
		gzipped = buf
		c.cache.Set(gzipKey, gzipped)
	}

	asset := &Asset{Name: name, MIMEType: mimeType, Content: content, GzippedContent: gzipped}
	c.assets.Store(name, asset)
	return asset, true
}

func (c *Coffer) read(name string) ([]byte, bool) {
	if c.overrideDir != "" {
		if b, err := os.ReadFile(filepath.Join(c.overrideDir, name)); err == nil {
			return b, true
		}
	}
	b, err := embedded.ReadFile("static/" + name)
	if err != nil {
		return nil, false
	}
	return b, true
}

func (c *Coffer) minify(mimeType string, b []byte) ([]byte, error) {
	c.minifyOnce.Do(func() {
		c.minifier = minify.New()
		c.minifier.AddFunc("text/html", minifyhtml.Minify)
		c.minifier.AddFunc("text/javascript", minifyjs.Minify)
		c.minifier.AddFunc("application/javascript", minifyjs.Minify)
	})
	var buf bytes.Buffer
	if err := c.minifier.Minify(mimeType, &buf, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("assets: minify %s: %w", mimeType, err)
	}
	return buf.Bytes(), nil
}

func gzipBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
