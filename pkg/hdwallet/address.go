package hdwallet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// IsValidAddress reports whether the given string is a well-formed 20-byte
// hex address.
func IsValidAddress(address string) bool {
	return common.IsHexAddress(address)
}

// ChecksumAddress normalizes an address to its EIP55 checksum casing.
func ChecksumAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return common.HexToAddress(address).Hex(), nil
}

// ShortenAddress renders an address as "0x1234...abcd" for display.
func ShortenAddress(address string) (string, error) {
	checksummed, err := ChecksumAddress(address)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s...%s", checksummed[:6], checksummed[len(checksummed)-4:]), nil
}
