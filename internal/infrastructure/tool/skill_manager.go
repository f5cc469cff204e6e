package tool

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	domainErrors "github.com/ngoclaw/agentcore/pkg/errors"
)

// Descriptor is a skill's metadata: id, name, description, and on-disk
// path. Skills are knowledge packages, not tool bundles — the catalog
// never exposes what scripts or tools a skill might contain, only that it
// exists and where the model can read it.
type Descriptor struct {
	ID          string
	Name        string
	Description string
	Path        string
}

// frontMatter is the YAML block at the top of SKILL.md, delimited by "---"
// lines, read instead of the teacher's positional line-parsing.
type frontMatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// SkillManager loads skill metadata (never contents) from a directory at
// startup, adapted from the teacher's SkillManager filesystem-scan idiom.
type SkillManager struct {
	mu       sync.RWMutex
	skillDir string
	skills   map[string]*Descriptor
}

// NewSkillManager scans skillDir for skill packages and builds the catalog.
func NewSkillManager(skillDir string) *SkillManager {
	m := &SkillManager{
		skillDir: skillDir,
		skills:   make(map[string]*Descriptor),
	}
	m.scan()
	return m
}

func (m *SkillManager) scan() {
	if m.skillDir == "" {
		return
	}

	entries, err := os.ReadDir(m.skillDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		path := filepath.Join(m.skillDir, entry.Name())
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		if desc := m.loadDescriptor(path); desc != nil {
			m.skills[desc.ID] = desc
		}
	}
}

func (m *SkillManager) loadDescriptor(path string) *Descriptor {
	skillFile := filepath.Join(path, "SKILL.md")
	content, err := os.ReadFile(skillFile)
	if err != nil {
		return nil
	}

	id := filepath.Base(path)
	fm, err := parseFrontMatter(content)
	if err != nil || fm == nil {
		return &Descriptor{ID: id, Name: id, Path: path}
	}

	name := fm.Name
	if name == "" {
		name = id
	}
	return &Descriptor{ID: id, Name: name, Description: fm.Description, Path: path}
}

// parseFrontMatter extracts the "---\n...yaml...\n---" block from a
// SKILL.md file. Returns (nil, nil) when no front matter is present.
func parseFrontMatter(content []byte) (*frontMatter, error) {
	text := string(content)
	if !strings.HasPrefix(text, "---") {
		return nil, nil
	}
	rest := text[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, nil
	}
	block := strings.TrimPrefix(rest[:end], "\n")

	var fm frontMatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return nil, err
	}
	return &fm, nil
}

// ListMeta returns every skill's descriptor, sorted by ID for deterministic
// catalog rendering.
func (m *SkillManager) ListMeta() []*Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Descriptor, 0, len(m.skills))
	for _, desc := range m.skills {
		result = append(result, desc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Get resolves a skill by ID.
func (m *SkillManager) Get(id string) (*Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	desc, ok := m.skills[id]
	return desc, ok
}

// Has reports whether id names a known skill, used by the mention
// classifier to decide whether an @name token is a skill reference.
func (m *SkillManager) Has(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// RenderCatalog renders the skill set as a Markdown block suitable for
// injection into the system prompt: identity and location only, never the
// skill's tool inventory.
func (m *SkillManager) RenderCatalog() string {
	metas := m.ListMeta()
	if len(metas) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Available Skills\n\n")
	for _, desc := range metas {
		b.WriteString("- **")
		b.WriteString(desc.Name)
		b.WriteString("** (`")
		b.WriteString(desc.ID)
		b.WriteString("`): ")
		b.WriteString(desc.Description)
		b.WriteString(" — read ")
		b.WriteString(filepath.Join(desc.Path, "SKILL.md"))
		b.WriteString(" for details.\n")
	}
	return b.String()
}

// ErrSkillNotFound is returned by callers that need an error value rather
// than the (desc, bool) form, e.g. the mention classifier's reminder path.
func ErrSkillNotFound(id string) error {
	return domainErrors.NewNotFoundError("skill not found: " + id)
}
