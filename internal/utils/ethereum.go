package utils

import "github.com/ethereum/go-ethereum/common"

func IsValidEthereumAddress(address string) bool {
	return common.IsHexAddress(address)
}

// NormalizeEthereumAddress returns the EIP-55 checksummed form of a hex
// address. Contract addresses arrive from env config, registry reads and
// stored submission rows with inconsistent casing; normalizing both sides
// keeps allowlist comparisons exact. Returns "" for invalid input.
func NormalizeEthereumAddress(address string) string {
	if !common.IsHexAddress(address) {
		return ""
	}
	return common.HexToAddress(address).Hex()
}
