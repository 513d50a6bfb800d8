package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	DefaultConfigFile = "pongCheckerConfig.yaml"
	RpcEnvVar         = "RPC_HTTP_PROVIDER"

	// PingPong contract deployed on sepolia
	DefaultContractAddress = "0xA7F42ff7433cB268dD7D59be62b00c30dEd28d3D"
	DefaultAbiPath         = "PingPongABI.json"
	DefaultLogDir          = "logs"
	DefaultLogLevel        = "info"
	DefaultBatchSize       = 100
)

var ErrMissingRpcURL = errors.New(RpcEnvVar + " not set")

type CheckerConfig struct {
	ContractAddress string `yaml:"contract_address"`
	AbiPath         string `yaml:"abi_path"`
	LogDir          string `yaml:"log_dir"`
	LogLevel        string `yaml:"log_level"`
	BatchSize       int    `yaml:"batch_size"`
	MetricsFile     string `yaml:"metrics_file"`
}

func DefaultConf() CheckerConfig {
	return CheckerConfig{
		ContractAddress: DefaultContractAddress,
		AbiPath:         DefaultAbiPath,
		LogDir:          DefaultLogDir,
		LogLevel:        DefaultLogLevel,
		BatchSize:       DefaultBatchSize,
	}
}

// GetConf reads the yaml config at path on top of the defaults.
// A missing DefaultConfigFile is not an error, any other missing path is.
func GetConf(path string) (CheckerConfig, error) {
	c := DefaultConf()
	if path == "" {
		path = DefaultConfigFile
	}

	yamlFile, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == DefaultConfigFile {
			return c, nil
		}
		return CheckerConfig{}, err
	}

	err = yaml.UnmarshalStrict(yamlFile, &c)
	if err != nil {
		return CheckerConfig{}, fmt.Errorf("%s: %w", path, err)
	}

	return c, c.Validate()
}

func (c CheckerConfig) Validate() error {
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("invalid contract_address %q", c.ContractAddress)
	}
	if c.AbiPath == "" {
		return errors.New("abi_path is empty")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// RpcURL returns the node endpoint from the environment, loading a .env
// file from the working directory first if there is one.
func RpcURL() (string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("godotenv.Load: %w", err)
	}
	url := os.Getenv(RpcEnvVar)
	if url == "" {
		return "", ErrMissingRpcURL
	}
	return url, nil
}
