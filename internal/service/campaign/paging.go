package campaign

import (
	"encoding/base64"
	"fmt"
)

// EncodePagingState converts a Scylla paging state to a URL-safe token.
func EncodePagingState(state []byte) string {
	if len(state) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(state)
}

// DecodePagingState decodes a paging token back to paging state bytes.
func DecodePagingState(token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}
	state, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode paging token: %w", err)
	}
	return state, nil
}
