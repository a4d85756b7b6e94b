package model

// TokenMeta captures token metadata.
type TokenMeta struct {
	Address  string `json:"address" yaml:"address"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
}
