package blobstash

import (
	"fmt"
	"net/url"

	"github.com/blobstash/blobstash.go/pkg/blobstore"
	"github.com/blobstash/blobstash.go/pkg/connection"
	"github.com/blobstash/blobstash.go/pkg/connection/http"
	"github.com/blobstash/blobstash.go/pkg/constants"
	"github.com/blobstash/blobstash.go/pkg/docstore"
	"github.com/blobstash/blobstash.go/pkg/filetree"
	"github.com/blobstash/blobstash.go/pkg/kvstore"
	"github.com/blobstash/blobstash.go/pkg/logger"
)

// DB is a BlobStash client.
type DB struct {
	transport connection.Transport
	logger    logger.Logger

	docs  *docstore.Client
	kv    *kvstore.Client
	blobs *blobstore.Client
	files *filetree.Client
}

// New creates a client for the server described by cfg. Options are applied
// to the document store client.
func New(cfg *connection.Config, opts ...docstore.Option) (*DB, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, constants.ErrNoBaseURL
	}
	return FromTransport(http.New(cfg), cfg, opts...), nil
}

// FromTransport creates a client over an existing transport. cfg supplies
// the logger and the default page size and may be nil.
func FromTransport(t connection.Transport, cfg *connection.Config, opts ...docstore.Option) *DB {
	l := logger.Nop()
	pageSize := constants.DefaultPageSize
	if cfg != nil {
		if cfg.Logger != nil {
			l = cfg.Logger
		}
		if cfg.PageSize > 0 {
			pageSize = cfg.PageSize
		}
	}

	files := filetree.New(t)
	docOpts := append([]docstore.Option{
		docstore.WithLogger(l),
		docstore.WithDefaultPageSize(pageSize),
		docstore.WithResolver(files),
	}, opts...)

	return &DB{
		transport: t,
		logger:    l,
		docs:      docstore.New(t, docOpts...),
		kv:        kvstore.New(t, l),
		blobs:     blobstore.New(t, l),
		files:     files,
	}
}

// FromEndpointURLString creates a client for the server at endpoint, e.g.
// "http://:apikey@localhost:8050".
func FromEndpointURLString(endpoint string) (*DB, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint: %w", err)
	}
	if u.Scheme != constants.HTTPScheme && u.Scheme != constants.HTTPSecureScheme {
		return nil, fmt.Errorf("invalid endpoint scheme %q: expected http or https", u.Scheme)
	}
	return New(connection.NewConfig(u))
}

// FromEnv creates a client configured by the BLOBSTASH_* environment
// variables.
func FromEnv() (*DB, error) {
	cfg, err := connection.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// FromConfigFile creates a client from a YAML config file.
func FromConfigFile(path string) (*DB, error) {
	cfg, err := connection.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

func (db *DB) DocStore() *docstore.Client {
	return db.docs
}

// Collection is a shorthand for db.DocStore().Collection(name).
func (db *DB) Collection(name string) *docstore.Collection {
	return db.docs.Collection(name)
}

func (db *DB) KVStore() *kvstore.Client {
	return db.kv
}

func (db *DB) BlobStore() *blobstore.Client {
	return db.blobs
}

func (db *DB) FileTree() *filetree.Client {
	return db.files
}

// Transport returns the transport shared by every store.
func (db *DB) Transport() connection.Transport {
	return db.transport
}
