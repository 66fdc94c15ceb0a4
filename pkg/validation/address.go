package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var ErrInvalidAddress = errors.New("invalid address")

// ValidateAddress validates an EVM address (20 bytes, hex encoded, 0x prefixed)
func ValidateAddress(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: address cannot be empty", ErrInvalidAddress)
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("%w: address must start with 0x", ErrInvalidAddress)
	}
	if len(addr) != 42 {
		return fmt.Errorf("%w: expected 40 hex characters, got %d", ErrInvalidAddress, len(addr)-2)
	}
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, addr)
	}
	return nil
}

// NormalizeAddress converts an address to its EIP-55 checksummed form.
// Every address stored by the explorer goes through this function.
func NormalizeAddress(addr string) string {
	return common.HexToAddress(addr).Hex()
}

// ValidateAndNormalizeAddress validates an address and returns its normalized form
func ValidateAndNormalizeAddress(addr string) (string, error) {
	if err := ValidateAddress(addr); err != nil {
		return "", err
	}
	return NormalizeAddress(addr), nil
}
