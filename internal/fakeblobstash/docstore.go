package fakeblobstash

import (
	"encoding/hex"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/zeebo/blake3"

	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/models"
	"github.com/blobstash/blobstash.go/pkg/patch"
)

var reservedKeys = []string{"_id", "_created", "_updated", "_hash"}

type docVersion struct {
	body    []byte
	hash    string
	updated time.Time
}

type document struct {
	id       string
	created  time.Time
	versions []docVersion
}

func (d *document) latest() docVersion {
	return d.versions[len(d.versions)-1]
}

// at returns the version current at t.
func (d *document) at(t time.Time) (docVersion, bool) {
	for i := len(d.versions) - 1; i >= 0; i-- {
		if !d.versions[i].updated.After(t) {
			return d.versions[i], true
		}
	}
	return docVersion{}, false
}

type collection struct {
	ids  []string
	docs map[string]*document
}

// AddStoredQuery registers a stored query callable through the
// stored_query parameter.
func (s *Server) AddStoredQuery(name string, q StoredQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storedQueries[name] = q
}

// Fingerprint returns the current fingerprint of a document.
func (s *Server) Fingerprint(col, id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.lookupDoc(col, id)
	if !ok {
		return "", false
	}
	return d.latest().hash, true
}

// DocumentCount returns the number of documents in col.
func (s *Server) DocumentCount(col string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.docs[col]; ok {
		return len(c.ids)
	}
	return 0
}

func (s *Server) lookupDoc(col, id string) (*document, bool) {
	c, ok := s.docs[col]
	if !ok {
		return nil, false
	}
	d, ok := c.docs[id]
	return d, ok
}

func fingerprint(id string, body []byte) string {
	sum := blake3.Sum256(append([]byte(id+"\n"), body...))
	return hex.EncodeToString(sum[:])
}

// readBody decodes a request body into a document body without the
// reserved keys.
func readBody(r *http.Request) (*models.Object, []byte, error) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, nil, err
	}
	o, err := models.ParseObject(data)
	if err != nil {
		return nil, nil, err
	}
	for _, k := range reservedKeys {
		o.Delete(k)
	}
	body, err := o.MarshalJSON()
	if err != nil {
		return nil, nil, err
	}
	return o, body, nil
}

func identity(d *document, v docVersion) *models.Object {
	return models.NewObject().
		Set("_id", models.String(d.id)).
		Set("_created", models.String(models.FormatDateTime(d.created))).
		Set("_updated", models.String(models.FormatDateTime(v.updated))).
		Set("_hash", models.String(v.hash))
}

// record returns the wire form of a document version.
func record(d *document, v docVersion) (*models.Object, error) {
	body, err := models.ParseObject(v.body)
	if err != nil {
		return nil, err
	}
	out := identity(d, v)
	body.Range(func(key string, val models.Value) bool {
		out.Set(key, val)
		return true
	})
	return out, nil
}

func (s *Server) handleCollections(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.docs))
	for name, c := range s.docs {
		if len(c.ids) > 0 {
			names = append(names, name)
		}
	}
	s.mu.RUnlock()

	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{"collections": names})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["col"]
	_, body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	now := s.now()
	id := strings.ToLower(ulid.Make().String())
	d := &document{
		id:       id,
		created:  now,
		versions: []docVersion{{body: body, hash: fingerprint(id, body), updated: now}},
	}

	s.mu.Lock()
	c, ok := s.docs[name]
	if !ok {
		c = &collection{docs: make(map[string]*document)}
		s.docs[name] = c
	}
	c.ids = append(c.ids, id)
	c.docs[id] = d
	s.mu.Unlock()

	s.logger.Debug("fakeblobstash: inserted", "collection", name, "id", id)
	writeJSON(w, http.StatusCreated, identity(d, d.latest()))
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.RLock()
	d, ok := s.lookupDoc(vars["col"], vars["id"])
	var v docVersion
	if ok {
		v = d.latest()
	}
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	rec, err := record(d, v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":     rec,
		"pointers": s.pointers([]*models.Object{rec}),
	})
}

func (s *Server) handleReplaceDoc(w http.ResponseWriter, r *http.Request) {
	_, body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeVersion(w, r, func([]byte) ([]byte, error) { return body, nil })
}

func (s *Server) handlePatchDoc(w http.ResponseWriter, r *http.Request) {
	ops, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeVersion(w, r, func(current []byte) ([]byte, error) {
		out, err := patch.ApplyJSON(ops, current)
		if err != nil {
			return nil, err
		}
		o, err := models.ParseObject(out)
		if err != nil {
			return nil, err
		}
		return o.MarshalJSON()
	})
}

// writeVersion stores the body computed by next from the current body,
// checking the If-Match precondition.
func (s *Server) writeVersion(w http.ResponseWriter, r *http.Request, next func(current []byte) ([]byte, error)) {
	vars := mux.Vars(r)

	s.mu.Lock()
	d, ok := s.lookupDoc(vars["col"], vars["id"])
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	current := d.latest()
	if want := r.Header.Get(constants.HeaderIfMatch); want != "" && want != current.hash {
		s.mu.Unlock()
		s.logger.Debug("fakeblobstash: precondition failed", "id", d.id, "want", want, "have", current.hash)
		writeError(w, http.StatusPreconditionFailed, "fingerprint mismatch")
		return
	}
	body, err := next(current.body)
	if err != nil {
		s.mu.Unlock()
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	v := docVersion{body: body, hash: fingerprint(d.id, body), updated: s.now()}
	d.versions = append(d.versions, v)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, identity(d, v))
}

func (s *Server) handleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.docs[vars["col"]]
	if !ok || c.docs[vars["id"]] == nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	delete(c.docs, vars["id"])
	for i, id := range c.ids {
		if id == vars["id"] {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDocVersions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	offset, limit, err := window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.RLock()
	d, ok := s.lookupDoc(vars["col"], vars["id"])
	var versions []docVersion
	if ok {
		versions = append(versions, d.versions...)
	}
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	start, end, info := paginate(len(versions), offset, limit)
	records := make([]*models.Object, 0, end-start)
	for i := start; i < end; i++ {
		rec, err := record(d, versions[len(versions)-1-i])
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		records = append(records, rec)
	}
	writeJSON(w, http.StatusOK, listResponse{Data: records, Pagination: info, Pointers: s.pointers(records)})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["col"]
	params := r.URL.Query()

	offset, limit, err := window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	match, err := s.matcher(params.Get("query"), params.Get("script"), params.Get("stored_query"), params.Get("stored_query_args"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	asOf := s.now()
	if raw := params.Get("as_of"); raw != "" {
		if asOf, err = time.ParseInLocation(constants.AsOfLayout, raw, time.UTC); err != nil {
			writeError(w, http.StatusBadRequest, "bad as_of: "+err.Error())
			return
		}
	}

	type hit struct {
		doc *document
		v   docVersion
	}
	var hits []hit
	s.mu.RLock()
	if c, ok := s.docs[name]; ok {
		for _, id := range c.ids {
			d := c.docs[id]
			v, ok := d.at(asOf)
			if !ok {
				continue
			}
			hits = append(hits, hit{doc: d, v: v})
		}
	}
	s.mu.RUnlock()

	var matched []*models.Object
	for _, h := range hits {
		var decoded map[string]any
		if err := json.Unmarshal(h.v.body, &decoded); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !match(decoded) {
			continue
		}
		rec, err := record(h.doc, h.v)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		matched = append(matched, rec)
	}

	start, end, info := paginate(len(matched), offset, limit)
	page := matched[start:end]
	if page == nil {
		page = []*models.Object{}
	}
	writeJSON(w, http.StatusOK, listResponse{Data: page, Pagination: info, Pointers: s.pointers(page)})
}

func (s *Server) matcher(query, script, stored, storedArgs string) (predicate, error) {
	switch {
	case script != "":
		return nil, errUnsupportedScript
	case stored != "":
		s.mu.RLock()
		q, ok := s.storedQueries[stored]
		s.mu.RUnlock()
		if !ok {
			return nil, errUnknownStoredQuery(stored)
		}
		var args []any
		if storedArgs != "" {
			if err := json.Unmarshal([]byte(storedArgs), &args); err != nil {
				return nil, err
			}
		}
		return func(doc map[string]any) bool { return q(doc, args) }, nil
	case query != "":
		return compilePredicate(query)
	default:
		return func(map[string]any) bool { return true }, nil
	}
}
