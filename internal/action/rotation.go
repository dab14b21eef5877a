package action

// NextInCycle picks the candidate after last, wrapping. With a single
// candidate it returns that one; an unset or unknown last yields the first.
// An empty list yields "".
func NextInCycle(candidates []string, last string) string {
	switch len(candidates) {
	case 0:
		return ""
	case 1:
		return candidates[0]
	}
	if last == "" {
		return candidates[0]
	}
	for i, c := range candidates {
		if c == last {
			return candidates[(i+1)%len(candidates)]
		}
	}
	return candidates[0]
}

// Rotation is a round-robin cursor over one class of clips.
type Rotation struct {
	last string
}

// Next returns the next candidate and remembers it.
func (r *Rotation) Next(candidates []string) (string, bool) {
	next := NextInCycle(candidates, r.last)
	if next == "" {
		return "", false
	}
	r.last = next
	return next, true
}

// Last returns the most recently chosen candidate.
func (r *Rotation) Last() string {
	return r.last
}

// Reset clears the cursor.
func (r *Rotation) Reset() {
	r.last = ""
}
