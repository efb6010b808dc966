package simple

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	pathpkg "path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeGateway is a small in-memory WebHDFS namenode+datanode.
type fakeGateway struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	files   map[string][]byte
	dirs    map[string]bool
	concats [][]string
}

func newFakeGateway(t *testing.T) *fakeGateway {
	g := &fakeGateway{t: t, files: make(map[string][]byte), dirs: map[string]bool{"/": true}}
	g.srv = httptest.NewServer(http.HandlerFunc(g.handle))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) URL() string { return g.srv.URL }

func (g *fakeGateway) put(path string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[path] = data
	for d := pathpkg.Dir(path); ; d = pathpkg.Dir(d) {
		g.dirs[d] = true
		if d == "/" {
			break
		}
	}
}

func (g *fakeGateway) file(path string) ([]byte, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	data, ok := g.files[path]
	return data, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, p string) {
	writeJSON(w, http.StatusNotFound, map[string]any{"RemoteException": map[string]string{
		"exception":     "FileNotFoundException",
		"javaClassName": "java.io.FileNotFoundException",
		"message":       "File does not exist: " + p,
	}})
}

func (g *fakeGateway) status(p string) (map[string]any, bool) {
	if data, ok := g.files[p]; ok {
		return map[string]any{"type": "FILE", "pathSuffix": pathpkg.Base(p), "length": len(data), "replication": 3, "modificationTime": 1700000000000}, true
	}
	if g.dirs[p] {
		return map[string]any{"type": "DIRECTORY", "pathSuffix": pathpkg.Base(p), "childrenNum": len(g.children(p)), "replication": 0}, true
	}
	return nil, false
}

func (g *fakeGateway) children(dir string) []string {
	var out []string
	for p := range g.files {
		if pathpkg.Dir(p) == dir {
			out = append(out, p)
		}
	}
	for p := range g.dirs {
		if p != "/" && pathpkg.Dir(p) == dir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (g *fakeGateway) handle(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(r.URL.Path, "/webhdfs/v1")
	if p == "" {
		p = "/"
	}
	p = pathpkg.Clean(p)
	q := r.URL.Query()

	g.mu.Lock()
	defer g.mu.Unlock()

	switch q.Get("op") {
	case "LISTSTATUS":
		if _, ok := g.files[p]; ok {
			st, _ := g.status(p)
			st["pathSuffix"] = ""
			writeJSON(w, http.StatusOK, map[string]any{"FileStatuses": map[string]any{"FileStatus": []any{st}}})
			return
		}
		if !g.dirs[p] {
			notFound(w, p)
			return
		}
		entries := []map[string]any{}
		for _, c := range g.children(p) {
			st, _ := g.status(c)
			entries = append(entries, st)
		}
		writeJSON(w, http.StatusOK, map[string]any{"FileStatuses": map[string]any{"FileStatus": entries}})

	case "GETFILESTATUS":
		st, ok := g.status(p)
		if !ok {
			notFound(w, p)
			return
		}
		st["pathSuffix"] = ""
		writeJSON(w, http.StatusOK, map[string]any{"FileStatus": st})

	case "OPEN":
		data, ok := g.files[p]
		if !ok {
			notFound(w, p)
			return
		}
		offset, _ := strconv.ParseInt(q.Get("offset"), 10, 64)
		end := int64(len(data))
		if l := q.Get("length"); l != "" {
			n, _ := strconv.ParseInt(l, 10, 64)
			if offset+n < end {
				end = offset + n
			}
		}
		if offset > end {
			offset = end
		}
		w.Write(data[offset:end])

	case "MKDIRS":
		for d := p; ; d = pathpkg.Dir(d) {
			g.dirs[d] = true
			if d == "/" {
				break
			}
		}
		writeJSON(w, http.StatusOK, map[string]bool{"boolean": true})

	case "DELETE":
		_, existed := g.status(p)
		delete(g.files, p)
		delete(g.dirs, p)
		prefix := p + "/"
		for f := range g.files {
			if strings.HasPrefix(f, prefix) {
				delete(g.files, f)
			}
		}
		for d := range g.dirs {
			if strings.HasPrefix(d, prefix) {
				delete(g.dirs, d)
			}
		}
		writeJSON(w, http.StatusOK, map[string]bool{"boolean": existed})

	case "CREATE":
		if q.Get("step") == "" {
			loc := fmt.Sprintf("%s%s?%s&step=data", g.srv.URL, r.URL.Path, r.URL.RawQuery)
			writeJSON(w, http.StatusOK, map[string]string{"Location": loc})
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		g.files[p] = body
		g.dirs[pathpkg.Dir(p)] = true
		w.WriteHeader(http.StatusCreated)

	case "CONCAT":
		dest, ok := g.files[p]
		if !ok {
			notFound(w, p)
			return
		}
		sources := strings.Split(q.Get("sources"), ",")
		for _, src := range sources {
			part, ok := g.files[src]
			if !ok {
				notFound(w, src)
				return
			}
			dest = append(dest, part...)
			delete(g.files, src)
		}
		g.files[p] = dest
		g.concats = append(g.concats, sources)

	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}
