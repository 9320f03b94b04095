package fakeblobstash

import (
	"io"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/blobstash/blobstash.go/pkg/blobstore"
)

// maxUpload bounds the memory used to parse one multipart upload.
const maxUpload = 32 << 20

// AddBlob stores data and returns its hash.
func (s *Server) AddBlob(data []byte) string {
	hash := blobstore.Hash(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[hash] = data
	return hash
}

// BlobCount returns the number of stored blobs.
func (s *Server) BlobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func (s *Server) handleBlobs(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.RLock()
	refs := make([]*blobstore.Blob, 0, len(s.blobs))
	for hash, data := range s.blobs {
		refs = append(refs, &blobstore.Blob{Hash: hash, Size: int64(len(data))})
	}
	s.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].Hash < refs[j].Hash })

	start, end, info := paginate(len(refs), offset, limit)
	writeJSON(w, http.StatusOK, listResponse{Data: refs[start:end], Pagination: info})
}

func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	data, ok := s.blobs[mux.Vars(r)["hash"]]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "blob not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	uploaded := make(map[string][]byte)
	for hash, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if blobstore.Hash(data) != hash {
				writeError(w, http.StatusBadRequest, "hash mismatch for "+hash)
				return
			}
			uploaded[hash] = data
		}
	}

	s.mu.Lock()
	for hash, data := range uploaded {
		s.blobs[hash] = data
	}
	s.mu.Unlock()

	s.logger.Debug("fakeblobstash: uploaded", "blobs", len(uploaded))
	w.WriteHeader(http.StatusNoContent)
}
