package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iptvault/iptvault/internal/catalog"
)

// PlaylistSeed is one entry of the YAML playlists file. It mirrors
// catalog.Playlist minus the synced fields.
type PlaylistSeed struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Type      string `yaml:"type"` // M3U | XTREAM_CODES
	URL       string `yaml:"url"`
	ServerURL string `yaml:"server_url"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	EPGURL    string `yaml:"epg_url"`
	Active    *bool  `yaml:"active"` // nil = active
}

type playlistsFile struct {
	Playlists []PlaylistSeed `yaml:"playlists"`
}

// LoadPlaylists reads the YAML seed file and returns validated
// playlists. A missing file is not an error; a malformed entry is.
func LoadPlaylists(path string) ([]catalog.Playlist, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var f playlistsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse playlists file: %w", err)
	}
	out := make([]catalog.Playlist, 0, len(f.Playlists))
	for i, seed := range f.Playlists {
		p, err := seed.playlist()
		if err != nil {
			return nil, fmt.Errorf("playlists[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (seed PlaylistSeed) playlist() (catalog.Playlist, error) {
	p := catalog.Playlist{
		ID:        seed.ID,
		Name:      seed.Name,
		URL:       seed.URL,
		ServerURL: seed.ServerURL,
		Username:  seed.Username,
		Password:  seed.Password,
		EPGURL:    seed.EPGURL,
		IsActive:  seed.Active == nil || *seed.Active,
	}
	switch strings.ToUpper(strings.TrimSpace(seed.Type)) {
	case string(catalog.PlaylistM3U):
		p.Type = catalog.PlaylistM3U
		if p.URL == "" {
			return p, fmt.Errorf("m3u playlist needs url")
		}
	case string(catalog.PlaylistXtreamCodes):
		p.Type = catalog.PlaylistXtreamCodes
		if p.ServerURL == "" || p.Username == "" || p.Password == "" {
			return p, fmt.Errorf("xtream playlist needs server_url, username and password")
		}
	default:
		return p, fmt.Errorf("unknown type %q", seed.Type)
	}
	if p.Name == "" {
		return p, fmt.Errorf("playlist needs a name")
	}
	if p.ID == "" {
		p.ID = slug(p.Name)
	}
	return p, nil
}

// slug derives a stable id from a display name.
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
