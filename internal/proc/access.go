package proc

import "sort"

// Running lists the names of children that have not exited yet.
func (s *Supervisor) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.childs))
	for name := range s.childs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
