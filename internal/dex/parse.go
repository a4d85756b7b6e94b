package dex

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"ammQuote/internal/ammerr"
)

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, ammerr.Validation("parse address", "invalid address %q", input)
	}
	return common.HexToAddress(input), nil
}
