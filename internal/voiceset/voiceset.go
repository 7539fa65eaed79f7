// Package voiceset resolves named voices from a JSON manifest to one or
// more .htsvoice bundle files and loads them into an htsvoice.VoiceSet,
// adapted from the teacher's internal/tts.VoiceManager (ONNX model-path
// manifest) to HTS voice-bundle manifests that may interpolate across
// several files per named voice.
package voiceset

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/example/jbonsai/internal/htsvoice"
)

// Voice is one named entry in a manifest: one or more .htsvoice bundle
// paths that together form an interpolatable voice set (spec.md §3).
type Voice struct {
	ID      string   `json:"id"`
	Paths   []string `json:"paths"`
	License string   `json:"license"`
}

type manifest struct {
	Voices []Voice `json:"voices"`
}

// Manager resolves and loads named voices from a manifest file.
type Manager struct {
	manifestPath string
	baseDir      string
	voices       []Voice
	byID         map[string]Voice
}

// NewManager reads and validates a voice manifest.
func NewManager(manifestPath string) (*Manager, error) {
	if manifestPath == "" {
		return nil, errors.New("voiceset: manifest path is required")
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("voiceset: read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("voiceset: decode manifest: %w", err)
	}

	mgr := &Manager{
		manifestPath: manifestPath,
		baseDir:      filepath.Dir(manifestPath),
		voices:       append([]Voice(nil), m.Voices...),
		byID:         make(map[string]Voice, len(m.Voices)),
	}

	for _, v := range m.Voices {
		if v.ID == "" {
			return nil, errors.New("voiceset: manifest contains empty id")
		}

		if len(v.Paths) == 0 {
			return nil, fmt.Errorf("voiceset: voice %q has no bundle paths", v.ID)
		}

		if _, exists := mgr.byID[v.ID]; exists {
			return nil, fmt.Errorf("voiceset: duplicate voice id %q", v.ID)
		}

		mgr.byID[v.ID] = v
	}

	return mgr, nil
}

// ListVoices returns every named voice in the manifest.
func (m *Manager) ListVoices() []Voice {
	return append([]Voice(nil), m.voices...)
}

// ResolvePaths returns id's bundle paths, resolved against the manifest's
// directory and checked for existence.
func (m *Manager) ResolvePaths(id string) ([]string, error) {
	v, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("voiceset: unknown voice id %q", id)
	}

	resolved := make([]string, len(v.Paths))

	for i, p := range v.Paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(m.baseDir, p)
		}

		p = filepath.Clean(p)

		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("voiceset: bundle file for %q: %w", id, err)
		}

		resolved[i] = p
	}

	return resolved, nil
}

// Load resolves id's bundle paths and parses every one into a single
// htsvoice.VoiceSet, ready for engine.New.
func (m *Manager) Load(id string, logger *slog.Logger) (htsvoice.VoiceSet, error) {
	paths, err := m.ResolvePaths(id)
	if err != nil {
		return htsvoice.VoiceSet{}, err
	}

	var (
		metadata htsvoice.GlobalMetadata
		voices   []htsvoice.Voice
	)

	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return htsvoice.VoiceSet{}, fmt.Errorf("voiceset: read bundle %q: %w", p, err)
		}

		gm, v, err := htsvoice.ParseVoice(data, logger)
		if err != nil {
			return htsvoice.VoiceSet{}, fmt.Errorf("voiceset: parse bundle %q: %w", p, err)
		}

		if i == 0 {
			metadata = gm
		} else if !metadata.Equal(gm) {
			return htsvoice.VoiceSet{}, fmt.Errorf("voiceset: bundle %q metadata does not match voice %q's first bundle", p, id)
		}

		voices = append(voices, v)
	}

	return htsvoice.NewVoiceSet(metadata, voices)
}
