// Package account defines the ledger's holder identity model: an opaque
// owner identity optionally qualified by a 32-byte subaccount. Packed account
// text is write-only; decoding it is intentionally not provided and callers
// submit accounts in structured form.
package account

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/tokamint/tokamint/internal/principal"
)

// SubaccountLength is the fixed size of a subaccount discriminator.
const SubaccountLength = 32

// accountTerminator closes the packed owner||subaccount encoding so a decoder
// could split the two fields unambiguously.
const accountTerminator = 0x7F

// Subaccount distinguishes multiple balances held under one owner identity.
type Subaccount [SubaccountLength]byte

// DefaultSubaccount returns the canonical all-zero subaccount.
func DefaultSubaccount() Subaccount {
	return Subaccount{}
}

// SubaccountFromBytes builds a Subaccount from exactly SubaccountLength bytes.
func SubaccountFromBytes(raw []byte) (Subaccount, error) {
	var sub Subaccount
	if len(raw) != SubaccountLength {
		return sub, fmt.Errorf("account: subaccount must be %d bytes, got %d", SubaccountLength, len(raw))
	}
	copy(sub[:], raw)
	return sub, nil
}

// SubaccountFromHex parses a hex-encoded subaccount.
func SubaccountFromHex(text string) (Subaccount, error) {
	raw, err := hex.DecodeString(text)
	if err != nil {
		return Subaccount{}, fmt.Errorf("account: decode subaccount hex: %w", err)
	}
	return SubaccountFromBytes(raw)
}

// IsDefault reports whether the subaccount is all zero bytes.
func (s Subaccount) IsDefault() bool {
	return s == Subaccount{}
}

// MarshalText renders the subaccount as hex.
func (s Subaccount) MarshalText() ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(s)))
	hex.Encode(out, s[:])
	return out, nil
}

// UnmarshalText parses a hex-encoded subaccount.
func (s *Subaccount) UnmarshalText(text []byte) error {
	parsed, err := SubaccountFromHex(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Account identifies a balance holder: an owner identity plus an optional
// subaccount discriminator. A nil subaccount and an explicit default
// subaccount denote the same logical account for display and hashing, but
// compare as distinct under Equal; see the Hash doc comment.
type Account struct {
	Owner principal.Principal `json:"owner"`
	Sub   *Subaccount         `json:"subaccount,omitempty"`
}

// New constructs an Account. The subaccount may be nil.
func New(owner principal.Principal, sub *Subaccount) Account {
	if sub == nil {
		return Account{Owner: owner}
	}
	cp := *sub
	return Account{Owner: owner, Sub: &cp}
}

// Equal reports account identity equality: owners must match binary-exactly
// and subaccounts must be both nil, or both present and byte-equal. A nil
// subaccount is NOT normalized against the default subaccount here.
func (a Account) Equal(b Account) bool {
	if !a.Owner.Equal(b.Owner) {
		return false
	}
	if a.Sub == nil || b.Sub == nil {
		return a.Sub == nil && b.Sub == nil
	}
	return *a.Sub == *b.Sub
}

// Key returns an exact-byte map key. The key preserves the nil-versus-default
// subaccount distinction, so map lookups follow Equal semantics.
func (a Account) Key() string {
	buf := make([]byte, 0, len(a.Owner)+1+SubaccountLength)
	buf = append(buf, a.Owner...)
	if a.Sub == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = append(buf, a.Sub[:]...)
	}
	return string(buf)
}

// Hash combines a digest of the owner with a digest of the subaccount, first
// normalizing a nil subaccount to the default. Note the asymmetry with Equal:
// two accounts differing only in nil-versus-explicit-default hash identically
// yet compare unequal. Ledger maps key on Key(), which sidesteps the hazard;
// the behavior is kept for parity with the display encoding.
func (a Account) Hash() uint32 {
	sub := DefaultSubaccount()
	if a.Sub != nil {
		sub = *a.Sub
	}
	return 31*digest32(a.Owner) + digest32(sub[:])
}

// Encode renders the account as text. The owner's default account (nil or
// all-zero subaccount) renders as the owner identity alone. Otherwise the
// subaccount is shrunk (leading zero bytes stripped) and packed after the
// owner bytes with a trailing length byte and terminator, then rendered
// through the identity codec.
func (a Account) Encode() string {
	if a.Sub == nil || a.Sub.IsDefault() {
		return principal.Encode(a.Owner)
	}
	shrunk := shrink(a.Sub[:])
	buf := make([]byte, 0, len(a.Owner)+len(shrunk)+2)
	buf = append(buf, a.Owner...)
	buf = append(buf, shrunk...)
	buf = append(buf, byte(len(shrunk)), accountTerminator)
	return principal.Encode(buf)
}

// String implements fmt.Stringer.
func (a Account) String() string {
	return a.Encode()
}

// shrink strips leading zero bytes. Idempotent.
func shrink(sub []byte) []byte {
	i := 0
	for i < len(sub) && sub[i] == 0 {
		i++
	}
	return sub[i:]
}

func digest32(b []byte) uint32 {
	sum := blake2b.Sum256(b)
	return binary.BigEndian.Uint32(sum[:4])
}
