// Package ids derives the deterministic identifiers used by the sink.
package ids

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

var (
	versionNamespace  = uuid.NewSHA1(uuid.NameSpaceURL, []byte("geo-sink/version"))
	proposalNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("geo-sink/proposal"))
)

// TripleID hashes a triple's content. Equal content always yields an equal id.
func TripleID(spaceID, entityID, attributeID, valueID string) string {
	sum := blake2b.Sum256([]byte(spaceID + ":" + entityID + ":" + attributeID + ":" + valueID))
	return hex.EncodeToString(sum[:])
}

// VersionID identifies the version of an entity created by a proposal.
func VersionID(entityID, proposalID string) string {
	return uuid.NewSHA1(versionNamespace, []byte(entityID+":"+proposalID)).String()
}

// LegacyProposalID derives a proposal id for content that was published
// without a governance proposal.
func LegacyProposalID(entryID string) string {
	return uuid.NewSHA1(proposalNamespace, []byte(entryID)).String()
}

// ActionID identifies the action at index within a proposal.
func ActionID(proposalID string, index int) string {
	return uuid.NewSHA1(proposalNamespace, []byte(proposalID+"#"+strconv.Itoa(index))).String()
}

func NewRequestID() string {
	return uuid.NewString()
}

// ChecksumAddress returns the EIP-55 mixed-case form of a hex address.
// Inputs that are not 20-byte hex addresses are returned unchanged.
func ChecksumAddress(addr string) string {
	raw := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	if len(raw) != 40 {
		return addr
	}
	lower := strings.ToLower(raw)
	if _, err := hex.DecodeString(lower); err != nil {
		return addr
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	digest := h.Sum(nil)

	out := make([]byte, 40)
	for i := 0; i < 40; i++ {
		c := lower[i]
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if c >= 'a' && c <= 'f' && nibble&0x0f >= 8 {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimPrefix(a, "0x"), strings.TrimPrefix(b, "0x"))
}
