package config

import "github.com/spf13/pflag"

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	RPC          RPCConfig
	Scenario     string
	Out          string
	Snapshot     string
	MetricsOut   string
	PGDSN        string
	ChainID      uint64
	VaultAddress string
	LogLevel     string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"out":      "./data/logs.jsonl",
		"snapshot": "./data/snapshot.json",
		"chain-id": uint64(31337),
		"vault":    "0x00000000000000000000000000000000000000ba",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	return SimulateConfig{
		RPC:          rpcConfig(v),
		Scenario:     v.GetString("scenario"),
		Out:          v.GetString("out"),
		Snapshot:     v.GetString("snapshot"),
		MetricsOut:   v.GetString("metrics-out"),
		PGDSN:        v.GetString("pg-dsn"),
		ChainID:      v.GetUint64("chain-id"),
		VaultAddress: v.GetString("vault"),
		LogLevel:     v.GetString("log-level"),
	}, nil
}
