package mockchain

// TryEither runs branch a against the current state and, if it fails, branch
// b against an independent copy of the state as it was before a ran. The two
// branches never share mutable state and never interleave. The first success
// wins; if both fail, the state is restored and b's failure is returned
func (m *MockChain) TryEither(a, b func(m *MockChain) error) error {
	snapshot := m.state.Clone()
	if err := a(m); err == nil {
		return nil
	}
	m.state = snapshot.Clone()
	if err := b(m); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}
