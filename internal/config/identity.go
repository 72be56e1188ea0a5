// ABOUTME: Operator identity state persisted as a small TOML file.
// ABOUTME: The id distinguishes this console's typing echoes from other operators'.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// Identity is the persisted operator identity. The id is stable across
// restarts so the backend can attribute typing and review actions.
type Identity struct {
	AdminID     string `toml:"admin_id"`
	DisplayName string `toml:"display_name"`
}

// LoadIdentity reads the identity state file, creating one with a fresh
// id when it does not exist. An empty path resolves to a default under
// the user config directory.
func LoadIdentity(path string) (*Identity, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving config dir: %w", err)
		}
		path = filepath.Join(dir, "coven-console", "identity.toml")
	}

	var id Identity
	if _, err := toml.DecodeFile(path, &id); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading identity file: %w", err)
		}
		id = Identity{AdminID: "admin-" + uuid.New().String()}
		if err := saveIdentity(path, &id); err != nil {
			return nil, err
		}
		return &id, nil
	}

	if id.AdminID == "" {
		id.AdminID = "admin-" + uuid.New().String()
		if err := saveIdentity(path, &id); err != nil {
			return nil, err
		}
	}
	return &id, nil
}

func saveIdentity(path string, id *Identity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating identity dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("writing identity file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(id); err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}
	return nil
}
