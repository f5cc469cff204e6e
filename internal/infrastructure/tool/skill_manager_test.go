package tool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, dir, id, front string) {
	t.Helper()
	skillDir := filepath.Join(dir, id)
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(front), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestSkillManager_ScanAndListMeta(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "pdf-tools", "---\nname: PDF Tools\ndescription: Extract and merge PDF files.\n---\n\n# PDF Tools\n")
	writeSkill(t, dir, "csv-wrangler", "---\nname: CSV Wrangler\ndescription: Clean and reshape CSV data.\n---\n\nbody\n")

	m := NewSkillManager(dir)
	metas := m.ListMeta()
	if len(metas) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(metas))
	}
	if metas[0].ID != "csv-wrangler" || metas[1].ID != "pdf-tools" {
		t.Fatalf("expected deterministic ID-sorted order, got %+v", metas)
	}

	desc, ok := m.Get("pdf-tools")
	if !ok {
		t.Fatalf("expected pdf-tools to resolve")
	}
	if desc.Name != "PDF Tools" || desc.Description != "Extract and merge PDF files." {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
}

func TestSkillManager_MissingFrontMatterFallsBackToDirName(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "raw-skill", "# Just a heading, no front matter\n")

	m := NewSkillManager(dir)
	desc, ok := m.Get("raw-skill")
	if !ok {
		t.Fatalf("expected raw-skill to still be discovered")
	}
	if desc.Name != "raw-skill" {
		t.Fatalf("expected name to fall back to directory name, got %q", desc.Name)
	}
}

func TestSkillManager_RenderCatalogIncludesPathNotTools(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "git-flow", "---\nname: Git Flow\ndescription: Branch and release helpers.\n---\n")

	m := NewSkillManager(dir)
	catalog := m.RenderCatalog()
	if catalog == "" {
		t.Fatalf("expected non-empty catalog")
	}
	if !strings.Contains(catalog, "Git Flow") || !strings.Contains(catalog, "SKILL.md") {
		t.Fatalf("catalog missing expected fields: %s", catalog)
	}
}

func TestSkillManager_HasAndEmptyDir(t *testing.T) {
	m := NewSkillManager(t.TempDir())
	if m.Has("anything") {
		t.Fatalf("expected no skills in an empty directory")
	}
	if m.RenderCatalog() != "" {
		t.Fatalf("expected empty catalog for no skills")
	}
}
