package pingpong

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	PingEventName = "Ping"
	PongEventName = "Pong"
)

var (
	ErrMissingAbiKey = errors.New(`abi file has no top-level "abi" field`)
	ErrEventNotFound = errors.New("event not found in abi")
	ErrNoPingRef     = errors.New("pong event has no bytes32 input")
)

// LoadABI reads a compiler artifact style JSON file and parses its "abi" field.
func LoadABI(path string) (abi.ABI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, err
	}

	var artifact struct {
		Abi json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(data, &artifact); err != nil {
		return abi.ABI{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(artifact.Abi) == 0 || bytes.Equal(artifact.Abi, []byte("null")) {
		return abi.ABI{}, fmt.Errorf("%s: %w", path, ErrMissingAbiKey)
	}

	parsed, err := abi.JSON(bytes.NewReader(artifact.Abi))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("abi.JSON: %w", err)
	}
	if _, err := checkEvents(parsed); err != nil {
		return abi.ABI{}, fmt.Errorf("%s: %w", path, err)
	}
	return parsed, nil
}

// checkEvents makes sure both events exist and returns the Pong input
// carrying the answered ping's tx hash.
func checkEvents(parsed abi.ABI) (abi.Argument, error) {
	if _, ok := parsed.Events[PingEventName]; !ok {
		return abi.Argument{}, fmt.Errorf("%w: %s", ErrEventNotFound, PingEventName)
	}
	pong, ok := parsed.Events[PongEventName]
	if !ok {
		return abi.Argument{}, fmt.Errorf("%w: %s", ErrEventNotFound, PongEventName)
	}
	for _, input := range pong.Inputs {
		if input.Type.T == abi.FixedBytesTy && input.Type.Size == 32 {
			return input, nil
		}
	}
	return abi.Argument{}, ErrNoPingRef
}
