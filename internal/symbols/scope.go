package symbols

import "strings"

// FrameKind is the kind of a lexical scope frame.
type FrameKind string

const (
	FrameClass    FrameKind = "class"
	FrameFunction FrameKind = "function"
)

// Frame is one entry of the scope stack.
type Frame struct {
	Kind FrameKind
	Name string
}

// ScopeStack is the lexical scope of the node currently being visited,
// outermost frame first. The zero value is an empty (module-level) scope.
type ScopeStack struct {
	frames []Frame
}

// Push enters a new scope.
func (s *ScopeStack) Push(kind FrameKind, name string) {
	s.frames = append(s.frames, Frame{Kind: kind, Name: name})
}

// Pop leaves the innermost scope. It reports false on an empty stack.
func (s *ScopeStack) Pop() (Frame, bool) {
	if len(s.frames) == 0 {
		return Frame{}, false
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top, true
}

// Len returns the depth of the stack.
func (s *ScopeStack) Len() int { return len(s.frames) }

// Frames returns a copy of the frames, outermost first.
func (s *ScopeStack) Frames() []Frame {
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// Names returns the frame names, outermost first. Never nil.
func (s *ScopeStack) Names() []string {
	out := make([]string, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Name
	}
	return out
}

// ClassPath returns the names of the class frames only, outermost first.
func (s *ScopeStack) ClassPath() []string {
	var out []string
	for _, f := range s.frames {
		if f.Kind == FrameClass {
			out = append(out, f.Name)
		}
	}
	return out
}

// Qualify prefixes name with the current class path. Function frames do
// not contribute, so a helper nested in Widget.outer qualifies as Widget.helper.
func (s *ScopeStack) Qualify(name string) string {
	path := s.ClassPath()
	if len(path) == 0 {
		return name
	}
	return strings.Join(path, ".") + "." + name
}

// InClass reports whether any frame on the stack is a class.
func (s *ScopeStack) InClass() bool {
	for _, f := range s.frames {
		if f.Kind == FrameClass {
			return true
		}
	}
	return false
}

// NearestClass returns the innermost class frame's name.
func (s *ScopeStack) NearestClass() (string, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Kind == FrameClass {
			return s.frames[i].Name, true
		}
	}
	return "", false
}
