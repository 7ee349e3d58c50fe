package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// robotCredentials holds the connection details for a Viam machine.
type robotCredentials struct {
	Address  string `json:"address"`
	EntityID string `json:"entity_id"`
	APIKey   string `json:"api_key"`
}

// loadCreds reads credentials from a JSON file, or from VIAM_ADDRESS,
// VIAM_API_KEY_ID and VIAM_API_KEY when no file is given. A .env file in the
// working directory is loaded first if present.
func loadCreds(path string) (*robotCredentials, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		var c robotCredentials
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing credentials file: %w", err)
		}
		return &c, nil
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	c := &robotCredentials{
		Address:  os.Getenv("VIAM_ADDRESS"),
		EntityID: os.Getenv("VIAM_API_KEY_ID"),
		APIKey:   os.Getenv("VIAM_API_KEY"),
	}
	if c.Address == "" || c.EntityID == "" || c.APIKey == "" {
		return nil, errors.New("no -creds file and VIAM_ADDRESS, VIAM_API_KEY_ID, VIAM_API_KEY not all set")
	}
	return c, nil
}
