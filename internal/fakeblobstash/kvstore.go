package fakeblobstash

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/blobstash/blobstash.go/pkg/blobstore"
)

type keyValue struct {
	Key     string `json:"key"`
	Version int64  `json:"version"`
	Data    []byte `json:"data"`
	Hash    string `json:"hash,omitempty"`
}

// latestKeys returns the newest version of every key, sorted by key.
func (s *Server) latestKeys() []keyValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]keyValue, 0, len(s.kv))
	for _, versions := range s.kv {
		out = append(out, versions[len(versions)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	keys := s.latestKeys()
	start, end, info := paginate(len(keys), offset, limit)
	writeJSON(w, http.StatusOK, listResponse{Data: keys[start:end], Pagination: info})
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	versions, ok := s.kv[mux.Vars(r)["key"]]
	var kv keyValue
	if ok {
		kv = versions[len(versions)-1]
	}
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "key not found")
		return
	}
	writeJSON(w, http.StatusOK, kv)
}

func (s *Server) handlePutKey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	version := int64(-1)
	if v := r.PostForm.Get("version"); v != "" {
		var err error
		if version, err = strconv.ParseInt(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "bad version "+strconv.Quote(v))
			return
		}
	}

	data := []byte(r.PostForm.Get("data"))
	kv := keyValue{
		Key:     mux.Vars(r)["key"],
		Version: version,
		Data:    data,
		Hash:    r.PostForm.Get("ref"),
	}
	if kv.Hash == "" && len(data) > 0 {
		kv.Hash = blobstore.Hash(data)
	}

	s.mu.Lock()
	versions := s.kv[kv.Key]
	n := len(versions)
	if version < 0 {
		// Server-assigned versions are timestamps, bumped past the latest.
		version = s.Now().UnixNano()
		if n > 0 && versions[n-1].Version >= version {
			version = versions[n-1].Version + 1
		}
		kv.Version = version
	}
	if n > 0 && versions[n-1].Version >= version {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "version must increase")
		return
	}
	s.kv[kv.Key] = append(versions, kv)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, kv)
}

func (s *Server) handleKeyVersions(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.RLock()
	versions, ok := s.kv[mux.Vars(r)["key"]]
	newest := make([]keyValue, len(versions))
	for i, kv := range versions {
		newest[len(versions)-1-i] = kv
	}
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "key not found")
		return
	}

	start, end, info := paginate(len(newest), offset, limit)
	writeJSON(w, http.StatusOK, listResponse{Data: newest[start:end], Pagination: info})
}
