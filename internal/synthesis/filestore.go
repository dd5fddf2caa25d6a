package synthesis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	frontMatterDelimiter = "---"
	summaryHeading       = "# User profile"
)

// ProfileStore persists the profile.
type ProfileStore interface {
	Load(ctx context.Context) (UserProfile, error)
	Save(ctx context.Context, p UserProfile) error
}

// FileStore keeps the profile in one markdown file: YAML front-matter holds
// the version and facts, the body holds the summary.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("synthesis: create profile dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (fs *FileStore) Path() string { return fs.path }

// Load returns an empty profile when the file does not exist yet.
func (fs *FileStore) Load(_ context.Context) (UserProfile, error) {
	b, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return UserProfile{}, nil
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("synthesis: read profile: %w", err)
	}
	return ParseProfile(b)
}

// Save writes the profile atomically via a temporary file.
func (fs *FileStore) Save(_ context.Context, p UserProfile) error {
	b, err := SerializeProfile(p)
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("synthesis: write temp profile: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("synthesis: rename profile: %w", err)
	}
	return nil
}

// ParseProfile reads a profile document.
func ParseProfile(raw []byte) (UserProfile, error) {
	s := string(raw)
	if !strings.HasPrefix(s, frontMatterDelimiter) {
		return UserProfile{}, fmt.Errorf("synthesis: missing front-matter delimiter")
	}
	rest := s[len(frontMatterDelimiter):]
	idx := strings.Index(rest, "\n"+frontMatterDelimiter)
	if idx == -1 {
		return UserProfile{}, fmt.Errorf("synthesis: unclosed front-matter block")
	}

	var p UserProfile
	if err := yaml.Unmarshal([]byte(rest[:idx]), &p); err != nil {
		return UserProfile{}, fmt.Errorf("synthesis: front-matter parse error: %w", err)
	}

	body := strings.TrimSpace(rest[idx+len("\n"+frontMatterDelimiter):])
	body = strings.TrimSpace(strings.TrimPrefix(body, summaryHeading))
	p.Summary = body
	return p, nil
}

// SerializeProfile renders a profile document.
func SerializeProfile(p UserProfile) ([]byte, error) {
	meta, err := yaml.Marshal(&p)
	if err != nil {
		return nil, fmt.Errorf("synthesis: serialize profile: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(frontMatterDelimiter + "\n")
	sb.Write(meta)
	sb.WriteString(frontMatterDelimiter + "\n\n")
	sb.WriteString(summaryHeading + "\n\n")
	if s := strings.TrimSpace(p.Summary); s != "" {
		sb.WriteString(s + "\n")
	}
	return []byte(sb.String()), nil
}
