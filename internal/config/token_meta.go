package config

import "github.com/spf13/pflag"

// TokenMetaConfig holds configuration for the token-meta command.
type TokenMetaConfig struct {
	RPC      RPCConfig
	Tokens   []string
	LogLevel string
}

// LoadTokenMeta merges config file, environment variables, and flags into TokenMetaConfig.
func LoadTokenMeta(cfgFile string, flags *pflag.FlagSet) (TokenMetaConfig, error) {
	v, err := load(cfgFile, flags, nil)
	if err != nil {
		return TokenMetaConfig{}, err
	}
	return TokenMetaConfig{
		RPC:      rpcConfig(v),
		Tokens:   getStringSlice(v, "token"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
