package connection

import (
	"fmt"

	"github.com/blobstash/blobstash.go/internal/codec"
	"github.com/blobstash/blobstash.go/pkg/constants"
)

// Decoder is implemented by transports that carry their own response codec.
type Decoder interface {
	GetUnmarshaler() codec.Unmarshaler
}

// Unmarshal decodes a response body returned by t. Transports that do not
// implement Decoder get the default JSON codec.
func Unmarshal(t Transport, body []byte, dst any) error {
	var u codec.Unmarshaler = codec.NewJSON()
	if d, ok := t.(Decoder); ok {
		u = d.GetUnmarshaler()
		if u == nil {
			return constants.ErrNoUnmarshaler
		}
	}
	if err := u.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", constants.ErrInvalidResponse, err)
	}
	return nil
}
