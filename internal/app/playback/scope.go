package playback

// scope collects release functions acquired together so they can be
// released together on any exit path.
type scope struct {
	releases []func()
}

func (s *scope) add(release func()) {
	if release == nil {
		return
	}
	s.releases = append(s.releases, release)
}

// release runs every release function in reverse acquisition order and empties the scope.
func (s *scope) release() {
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}

func (s *scope) size() int {
	return len(s.releases)
}
