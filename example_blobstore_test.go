package blobstash_test

import (
	"context"
	"fmt"

	"github.com/blobstash/blobstash.go/pkg/blobstore"
)

func ExampleDB_BlobStore() {
	ctx := context.Background()
	server, db, err := startFakeServer()
	if err != nil {
		panic(err)
	}
	defer server.Stop()

	blob := blobstore.NewBlob(nil)
	fmt.Println(blob.Hash)

	if err := db.BlobStore().Put(ctx, blobstore.NewBlob([]byte("hello"))); err != nil {
		panic(err)
	}
	refs, err := db.BlobStore().Blobs(ctx).All(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Println(len(refs), refs[0].Size)

	// Output:
	// 0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8
	// 1 5
}
