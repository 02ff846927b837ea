package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTripleIDIsDeterministic(t *testing.T) {
	a := TripleID("0xS", "e1", NameAttribute, "v1")
	b := TripleID("0xS", "e1", NameAttribute, "v1")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, TripleID("0xS", "e1", NameAttribute, "v2"))
	assert.NotEqual(t, a, TripleID("0xT", "e1", NameAttribute, "v1"))
	// field boundaries matter
	assert.NotEqual(t, TripleID("a", "bc", "d", "e"), TripleID("ab", "c", "d", "e"))
}

func TestVersionID(t *testing.T) {
	assert.Equal(t, VersionID("e1", "p1"), VersionID("e1", "p1"))
	assert.NotEqual(t, VersionID("e1", "p1"), VersionID("e1", "p2"))
	assert.NotEqual(t, VersionID("e1", "p1"), LegacyProposalID("e1:p1"))
}

func TestChecksumAddress(t *testing.T) {
	// EIP-55 reference vectors
	cases := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}
	for _, want := range cases {
		assert.Equal(t, want, ChecksumAddress(toLower(want)))
		assert.Equal(t, want, ChecksumAddress(want))
	}
	assert.Equal(t, "not-an-address", ChecksumAddress("not-an-address"))
}

func TestSameAddress(t *testing.T) {
	assert.True(t, SameAddress("0xabc", "0xABC"))
	assert.False(t, SameAddress("0xabc", "0xabd"))
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func TestActionID(t *testing.T) {
	assert.Equal(t, ActionID("p1", 0), ActionID("p1", 0))
	assert.NotEqual(t, ActionID("p1", 0), ActionID("p1", 1))
	assert.NotEqual(t, ActionID("p1", 0), ActionID("p2", 0))
	assert.Len(t, ActionID("p1", 0), 36)
}
