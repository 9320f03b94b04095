package blobstash_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	blobstash "github.com/blobstash/blobstash.go"
	"github.com/blobstash/blobstash.go/internal/fakeblobstash"
	"github.com/blobstash/blobstash.go/pkg/connection"
	"github.com/blobstash/blobstash.go/pkg/logger"
)

// newTestDB starts an in-memory server and returns a client connected to it.
func newTestDB(t testing.TB) (*fakeblobstash.Server, *blobstash.DB) {
	t.Helper()
	server, db, err := startFakeServer()
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Errorf("Failed to stop server: %v", err)
		}
	})
	return server, db
}

// startFakeServer is newTestDB for examples, which have no testing.TB.
func startFakeServer() (*fakeblobstash.Server, *blobstash.DB, error) {
	server := fakeblobstash.NewServer("127.0.0.1:0")
	server.APIKey = "secret"
	if err := server.Start(); err != nil {
		return nil, nil, err
	}

	u, err := url.Parse("http://:secret@" + server.Address())
	if err != nil {
		return nil, nil, err
	}
	cfg := connection.NewConfig(u)
	cfg.Logger = logger.Nop()

	db, err := blobstash.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return server, db, nil
}
