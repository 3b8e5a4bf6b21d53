package gitconfig

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"sync"

	format "github.com/go-git/go-git/v5/plumbing/format/config"
)

// MemoryStore is a Store held in memory with git's section, subsection and
// multi-valued variable semantics. It backs dry runs and tests.
type MemoryStore struct {
	mu  sync.Mutex
	cfg *format.Config
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cfg: format.New()}
}

// ParseMemoryStore decodes git config file contents into a MemoryStore.
func ParseMemoryStore(contents string) (*MemoryStore, error) {
	cfg := format.New()
	if err := format.NewDecoder(strings.NewReader(contents)).Decode(cfg); err != nil {
		return nil, err
	}
	return &MemoryStore{cfg: cfg}, nil
}

// splitKey splits section[.subsection].name the way git does: the section
// ends at the first dot and the variable name starts after the last one.
func splitKey(key string) (section, subsection, name string, err error) {
	first := strings.Index(key, ".")
	last := strings.LastIndex(key, ".")
	if first < 0 || last == len(key)-1 {
		return "", "", "", fmt.Errorf("error: key does not contain a section: %s", key)
	}
	section, name = key[:first], key[last+1:]
	if first != last {
		subsection = key[first+1 : last]
	}
	return section, subsection, name, nil
}

func (m *MemoryStore) ReplaceAll(key, value string) error {
	section, subsection, name, err := splitKey(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.SetOption(section, subsection, name, value)
	return nil
}

func (m *MemoryStore) Add(key, value string) error {
	section, subsection, name, err := splitKey(key)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.AddOption(section, subsection, name, value)
	return nil
}

func (m *MemoryStore) GetRegexp(pattern string) ([]Entry, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("error: invalid key pattern: %s", pattern)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []Entry
	collect := func(prefix string, options format.Options) {
		for _, o := range options {
			key := prefix + "." + strings.ToLower(o.Key)
			if re.MatchString(key) {
				entries = append(entries, Entry{Key: key, Value: o.Value})
			}
		}
	}
	for _, s := range m.cfg.Sections {
		name := strings.ToLower(s.Name)
		collect(name, s.Options)
		for _, ss := range s.Subsections {
			collect(name+"."+ss.Name, ss.Options)
		}
	}
	return entries, nil
}

func (m *MemoryStore) RemoveSection(section string) error {
	name, subsection, _ := strings.Cut(section, ".")

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.HasSection(name) {
		return fmt.Errorf("fatal: no such section: %s", section)
	}
	s := m.cfg.Section(name)
	if subsection == "" {
		m.cfg.RemoveSection(name)
		return nil
	}
	if !s.HasSubsection(subsection) {
		return fmt.Errorf("fatal: no such section: %s", section)
	}
	s.RemoveSubsection(subsection)
	if len(s.Options) == 0 && len(s.Subsections) == 0 {
		m.cfg.RemoveSection(name)
	}
	return nil
}

// Values returns every value stored under key.
func (m *MemoryStore) Values(key string) []string {
	section, subsection, name, err := splitKey(key)
	if err != nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.cfg.HasSection(section) {
		return nil
	}
	s := m.cfg.Section(section)
	if subsection == "" {
		return s.Options.GetAll(name)
	}
	if !s.HasSubsection(subsection) {
		return nil
	}
	return s.Subsection(subsection).Options.GetAll(name)
}

// Encode renders the store in git config file syntax.
func (m *MemoryStore) Encode() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var buf bytes.Buffer
	if err := format.NewEncoder(&buf).Encode(m.cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
