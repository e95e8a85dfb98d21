package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	dErrors "careledger/pkg/domain-errors"
)

// RegistryCode is the human-readable public identifier of a registrant,
// e.g. "NIC-MEM-5502" for a caregiver membership or "NIC-FAC-0417" for a
// facility registration. It appears on printed certificates and is the key
// the public verification surface accepts.
type RegistryCode string

// RegistrantKind discriminates the two concrete registrant types.
type RegistrantKind string

const (
	KindCaregiver RegistrantKind = "caregiver"
	KindFacility  RegistrantKind = "facility"
)

const codePrefix = "NIC"

var codePattern = regexp.MustCompile(`^NIC-(MEM|FAC)-\d{4,8}$`)

// ParseRegistryCode validates the structured code format at trust boundaries.
func ParseRegistryCode(s string) (RegistryCode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !codePattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid registry code")
	}
	return RegistryCode(s), nil
}

// NewRegistryCode allocates a fresh code for the given kind. Uniqueness is
// enforced by the store's unique constraint; callers retry on collision.
func NewRegistryCode(kind RegistrantKind) (RegistryCode, error) {
	segment := "MEM"
	if kind == KindFacility {
		segment = "FAC"
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate registry code: %w", err)
	}
	return RegistryCode(fmt.Sprintf("%s-%s-%06d", codePrefix, segment, n.Int64())), nil
}

// Kind derives the registrant kind from the code's middle segment.
func (c RegistryCode) Kind() RegistrantKind {
	if strings.HasPrefix(string(c), codePrefix+"-FAC-") {
		return KindFacility
	}
	return KindCaregiver
}

func (c RegistryCode) String() string { return string(c) }
