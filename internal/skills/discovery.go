package skills

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	SourceWorkspace = "workspace"
	SourceManaged   = "managed"
)

type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version,omitempty"`
	Path        string `json:"path"`
	Source      string `json:"source"`
	Enabled     bool   `json:"enabled"`
}

type Root struct {
	Dir    string
	Source string
}

type Discovery struct {
	Skills   []Skill
	Warnings []string
}

// Discover reads <root>/<skill>/SKILL.md for each root. A skill name found in
// an earlier root shadows the same name in later ones.
func Discover(roots []Root) Discovery {
	result := Discovery{Skills: []Skill{}, Warnings: []string{}}
	seen := map[string]struct{}{}

	for _, root := range roots {
		entries, err := os.ReadDir(root.Dir)
		if err != nil {
			if !os.IsNotExist(err) {
				result.Warnings = append(result.Warnings, "skills: failed to read "+root.Dir+": "+err.Error())
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			path := filepath.Join(root.Dir, entry.Name(), "SKILL.md")
			content, err := os.ReadFile(path)
			if err != nil {
				if !os.IsNotExist(err) {
					result.Warnings = append(result.Warnings, "skills: failed to read "+path+": "+err.Error())
				}
				continue
			}
			fm, body, err := parseFrontMatter(string(content))
			if err != nil {
				result.Warnings = append(result.Warnings, "skills: "+path+": "+err.Error())
			}
			skill := Skill{
				Name:        fm.Name,
				Description: fm.Description,
				Version:     fm.Version,
				Path:        path,
				Source:      root.Source,
				Enabled:     true,
			}
			if skill.Name == "" {
				skill.Name = entry.Name()
			}
			if skill.Description == "" {
				skill.Description = summarize(body)
			}
			if _, dup := seen[skill.Name]; dup {
				continue
			}
			seen[skill.Name] = struct{}{}
			result.Skills = append(result.Skills, skill)
		}
	}

	sort.Slice(result.Skills, func(i, j int) bool {
		return result.Skills[i].Name < result.Skills[j].Name
	})
	return result
}
