package hdwallet

import (
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// DerivationPath is the parsed form of a path like "m/44'/60'/0'/0/0":
// hardened components carry the hdkeychain hardened offset.
type DerivationPath []uint32

// ParseDerivationPath parses an absolute ("m/44'/60'/0'/0/0") or relative
// ("44'/60'/0'/0/0") BIP32 derivation path.
func ParseDerivationPath(path string) (DerivationPath, error) {
	p := strings.TrimSpace(path)
	if strings.HasPrefix(p, "m/") || strings.HasPrefix(p, "M/") {
		p = p[2:]
	}
	if p == "" || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") {
		return nil, ErrMalformedDerivationPath
	}

	parts := strings.Split(p, "/")
	indices := make(DerivationPath, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, ErrMalformedDerivationPath
		}
		hardened := strings.HasSuffix(part, "'")
		if hardened {
			part = strings.TrimSuffix(part, "'")
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil || v >= hdkeychain.HardenedKeyStart {
			return nil, ErrInvalidDerivationIndex
		}
		idx := uint32(v)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

func (p DerivationPath) String() string {
	elems := make([]string, 0, len(p))
	for _, idx := range p {
		if idx >= hdkeychain.HardenedKeyStart {
			elems = append(elems, strconv.FormatUint(uint64(idx-hdkeychain.HardenedKeyStart), 10)+"'")
		} else {
			elems = append(elems, strconv.FormatUint(uint64(idx), 10))
		}
	}
	return "m/" + strings.Join(elems, "/")
}
