package fakeblobstash

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/filetree"
	"github.com/blobstash/blobstash.go/pkg/models"
)

type nodeEntry struct {
	node    *filetree.Node
	content []byte
}

// AddNode stores a file-tree node and the content served for it. It
// returns the attachment pointer to embed in documents.
func (s *Server) AddNode(node *filetree.Node, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[node.Ref] = &nodeEntry{node: node, content: content}
	return filetree.PointerTo(node.Ref)
}

// pointers builds the pointers block for the attachments referenced by
// records. Unknown refs are left out.
func (s *Server) pointers(records []*models.Object) map[string]any {
	out := make(map[string]any)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range records {
		collect(models.ObjectValue(rec), func(pointer string) {
			ref := strings.TrimPrefix(pointer, constants.FileTreePointerPrefix)
			if e, ok := s.nodes[ref]; ok {
				out[pointer] = e.node
			}
		})
	}
	return out
}

func collect(v models.Value, fn func(pointer string)) {
	if p, ok := v.AsPointer(); ok {
		fn(p)
		return
	}
	if l, ok := v.AsList(); ok {
		for _, item := range l {
			collect(item, fn)
		}
		return
	}
	if o, ok := v.AsObject(); ok {
		o.Range(func(_ string, item models.Value) bool {
			collect(item, fn)
			return true
		})
	}
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	e, ok := s.nodes[mux.Vars(r)["ref"]]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"node": e.node})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	e, ok := s.nodes[mux.Vars(r)["ref"]]
	s.mu.RUnlock()
	if !ok || !e.node.IsFile() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.content)
}
