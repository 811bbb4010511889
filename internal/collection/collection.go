package collection

import (
	"fmt"
	"io"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
)

// Collection holds the parsed value of one response, or the error that
// parsing it produced. A failed Collection stays failed: Merge and
// Serialize return the original error.
//
// A Collection has a single owner. Concurrent Merge calls on the same
// Collection are not supported.
type Collection struct {
	format domain.Format
	codec  Codec
	value  Value
	err    error
}

// Parse builds a Collection from a response body.
func Parse(format domain.Format, body []byte) *Collection {
	c := &Collection{format: format}
	codec, err := CodecFor(format)
	if err != nil {
		c.err = err
		return c
	}
	c.codec = codec
	c.value, c.err = codec.Parse(body)
	return c
}

// Read builds a Collection from a streamed response body.
func Read(format domain.Format, r io.Reader) *Collection {
	body, err := io.ReadAll(r)
	if err != nil {
		return &Collection{format: format, err: &domain.NetworkError{Err: fmt.Errorf("read body: %w", err)}}
	}
	return Parse(format, body)
}

// Failed builds a Collection that carries err.
func Failed(format domain.Format, err error) *Collection {
	return &Collection{format: format, err: err}
}

// Format returns the collection's wire format.
func (c *Collection) Format() domain.Format { return c.format }

// Err returns the parse or merge failure, if any.
func (c *Collection) Err() error { return c.err }

// Value returns the parsed value.
func (c *Collection) Value() (Value, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.value, nil
}

// Len returns the number of strike records, or 0 for a failed collection.
func (c *Collection) Len() int {
	if c.err != nil || c.value == nil {
		return 0
	}
	return c.value.Len()
}

// Merge replaces c's value with c merged with other. other is not
// modified. If other has failed, c takes on its error.
func (c *Collection) Merge(other *Collection) (Value, error) {
	if c.err != nil {
		return nil, c.err
	}
	if other.err != nil {
		c.value, c.err = nil, other.err
		return nil, c.err
	}
	if c.format.Shape() != other.format.Shape() {
		return nil, &domain.MergeShapeMismatchError{Base: c.format, Other: other.format}
	}
	merged, err := c.codec.Merge(c.value, other.value)
	if err != nil {
		c.value, c.err = nil, err
		return nil, err
	}
	c.value = merged
	return merged, nil
}

// MergeAll merges others into c in argument order. Merging nothing leaves
// c unchanged.
func (c *Collection) MergeAll(others ...*Collection) (Value, error) {
	for _, o := range others {
		if _, err := c.Merge(o); err != nil {
			return nil, err
		}
	}
	return c.Value()
}

// Bytes serializes the collection to its wire format.
func (c *Collection) Bytes() ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.codec.Serialize(c.value)
}

// Serialize returns the wire form as a string.
func (c *Collection) Serialize() (string, error) {
	b, err := c.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
