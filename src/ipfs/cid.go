package ipfs

import (
	"encoding/base32"
	"errors"
	"strings"

	"github.com/mr-tron/base58"
)

var base32Lower = base32.StdEncoding.WithPadding(base32.NoPadding)

// validateCID accepts a base58 CIDv0 (a sha2-256 multihash) or a base32
// CIDv1 with the "b" multibase prefix.
func validateCID(cid string) error {
	switch {
	case strings.HasPrefix(cid, "Qm"):
		raw, err := base58.Decode(cid)
		if err != nil {
			return err
		}
		if len(raw) != 34 || raw[0] != 0x12 || raw[1] != 0x20 {
			return errors.New("cidv0 is not a sha2-256 multihash")
		}
		return nil
	case strings.HasPrefix(cid, "b"):
		rest := cid[1:]
		if rest == "" || strings.ToLower(rest) != rest {
			return errors.New("cidv1 must be lower-case base32")
		}
		raw, err := base32Lower.DecodeString(strings.ToUpper(rest))
		if err != nil {
			return err
		}
		if len(raw) < 4 || raw[0] != 0x01 {
			return errors.New("not a version 1 cid")
		}
		return nil
	default:
		return errors.New("unrecognized cid encoding")
	}
}
