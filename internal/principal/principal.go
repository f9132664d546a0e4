package principal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/mr-tron/base58"
)

// MaxLength bounds the raw identity to the platform limit.
const MaxLength = 29

var (
	// ErrEmpty indicates an identity with no bytes, which is not a valid participant.
	ErrEmpty = errors.New("principal: empty identity")

	// ErrTooLong indicates an identity exceeding the platform bound.
	ErrTooLong = errors.New("principal: identity exceeds maximum length")

	// ErrChecksum indicates textual input whose checksum does not match its payload.
	ErrChecksum = errors.New("principal: checksum mismatch")
)

// Principal is an opaque, variable-length binary participant identity.
type Principal []byte

// New validates raw identity bytes and returns them as a Principal.
func New(raw []byte) (Principal, error) {
	if len(raw) == 0 {
		return nil, ErrEmpty
	}
	if len(raw) > MaxLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLong, len(raw))
	}
	p := make(Principal, len(raw))
	copy(p, raw)
	return p, nil
}

// MustParse parses textual form and panics on failure. Intended for tests and
// static configuration defaults.
func MustParse(text string) Principal {
	p, err := FromText(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Encode renders arbitrary identity bytes as text: base58 over a 4-byte
// CRC-32 prefix followed by the payload. Account encoding reuses this for
// blobs longer than MaxLength, so no length bound applies here.
func Encode(raw []byte) string {
	buf := make([]byte, 4+len(raw))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(raw))
	copy(buf[4:], raw)
	return base58.Encode(buf)
}

// FromText parses the textual rendering of a Principal, verifying the
// checksum and the length bound.
func FromText(text string) (Principal, error) {
	buf, err := base58.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("principal: decode text: %w", err)
	}
	if len(buf) < 5 {
		return nil, ErrEmpty
	}
	raw := buf[4:]
	if binary.BigEndian.Uint32(buf) != crc32.ChecksumIEEE(raw) {
		return nil, ErrChecksum
	}
	return New(raw)
}

// Equal reports binary-exact identity equality.
func (p Principal) Equal(o Principal) bool {
	return bytes.Equal(p, o)
}

// Key returns the map-key form of the identity.
func (p Principal) Key() string {
	return string(p)
}

// String returns the textual rendering.
func (p Principal) String() string {
	return Encode(p)
}

// MarshalText implements encoding.TextMarshaler.
func (p Principal) MarshalText() ([]byte, error) {
	return []byte(Encode(p)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Principal) UnmarshalText(text []byte) error {
	parsed, err := FromText(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
