package output_storage

// Write implements io.Writer for OutputStorage so it can be used directly as
// exec.Cmd Stdout and Stderr.
//
// Behavior:
// - nil receiver: no-op, returns len(p), nil.
// - empty input: returns 0, nil.
// - p is copied, callers may reuse it after Write returns.
func (s *OutputStorage) Write(p []byte) (int, error) {
	if s == nil {
		return len(p), nil
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.Append(append([]byte(nil), p...))

	return len(p), nil
}
