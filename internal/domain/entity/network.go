package entity

// NetworkEndpoint maps a chain identifier to the JSON-RPC URL used for read-only calls.
type NetworkEndpoint struct {
	ChainID uint64 `json:"chainId" yaml:"chainId"`
	Name    string `json:"name" yaml:"name"`
	RPCURL  string `json:"-" yaml:"rpcUrl"`
	EnvVar  string `json:"envVar,omitempty" yaml:"envVar,omitempty"` // Environment variable the URL is read from
}
