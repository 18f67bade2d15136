package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"qc/internal/modules/checkin/domain"
)

// FileSessionCache keeps the live session as JSON next to the database.
type FileSessionCache struct {
	path string
}

func NewFileSessionCache(path string) *FileSessionCache {
	return &FileSessionCache{path: path}
}

func (c *FileSessionCache) Save(_ context.Context, session *domain.Session) error {
	if session == nil {
		return c.Clear(context.Background())
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create session cache dir: %w", err)
	}
	payload, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write session cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace session cache: %w", err)
	}
	return nil
}

// Load returns (nil, nil) when nothing is cached.
func (c *FileSessionCache) Load(_ context.Context) (*domain.Session, error) {
	payload, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session cache: %w", err)
	}
	session := &domain.Session{}
	if err := json.Unmarshal(payload, session); err != nil {
		return nil, fmt.Errorf("decode session cache: %w", err)
	}
	if session.ID == "" {
		return nil, nil
	}
	return session, nil
}

func (c *FileSessionCache) Clear(_ context.Context) error {
	if err := os.Remove(c.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("clear session cache: %w", err)
	}
	return nil
}
