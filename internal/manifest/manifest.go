package manifest

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"opencap/internal/services"
)

// Session is one entry of a group. In YAML it may be a bare id string or a
// mapping with id and label.
type Session struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label,omitempty"`
}

func (s *Session) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s.ID = strings.TrimSpace(node.Value)
		return nil
	}
	type plain Session
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = Session(p)
	s.ID = strings.TrimSpace(s.ID)
	return nil
}

// Group is a named list of sessions processed together.
type Group struct {
	Description string    `yaml:"description,omitempty"`
	Sessions    []Session `yaml:"sessions"`
}

// IDs returns the session identifiers in file order without duplicates.
func (g Group) IDs() []string {
	seen := make(map[string]struct{}, len(g.Sessions))
	ids := make([]string, 0, len(g.Sessions))
	for _, s := range g.Sessions {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		ids = append(ids, s.ID)
	}
	return ids
}

// Manifest is a set of session groups loaded from YAML.
type Manifest struct {
	Groups map[string]Group `yaml:"groups"`
	path   string
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "read", path, err)
	}
	return Parse(data, path)
}

// Parse decodes manifest YAML. source names the input in error messages.
func Parse(data []byte, source string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "parse", source, err)
	}
	m.path = source
	if len(m.Groups) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "validate", source+": no groups defined", nil)
	}
	for name, group := range m.Groups {
		if len(group.Sessions) == 0 {
			return nil, services.Wrap(services.ErrConfiguration, "manifest", "validate",
				fmt.Sprintf("%s: group %q has no sessions", source, name), nil)
		}
		for i, s := range group.Sessions {
			if s.ID == "" {
				return nil, services.Wrap(services.ErrConfiguration, "manifest", "validate",
					fmt.Sprintf("%s: group %q entry %d has no id", source, name, i+1), nil)
			}
		}
	}
	return &m, nil
}

// GroupNames returns the group names in sorted order.
func (m *Manifest) GroupNames() []string {
	names := make([]string, 0, len(m.Groups))
	for name := range m.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Group returns the named group.
func (m *Manifest) Group(name string) (Group, error) {
	group, ok := m.Groups[name]
	if !ok {
		return Group{}, services.Wrap(services.ErrConfiguration, "manifest", "group",
			fmt.Sprintf("%s: unknown group %q (have %s)", m.path, name, strings.Join(m.GroupNames(), ", ")), nil)
	}
	return group, nil
}
