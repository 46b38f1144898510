package symbols

import "github.com/DeusData/codeindex/internal/lang"

// nodeKinds indexes the node types of a LanguageSpec for dispatch.
type nodeKinds struct {
	function   map[string]bool
	class      map[string]bool
	call       map[string]bool
	importName map[string]bool
	importFrom map[string]bool
	decorator  map[string]bool
}

var pythonKinds = newNodeKinds(lang.ForLanguage(lang.Python))

func newNodeKinds(spec *lang.LanguageSpec) *nodeKinds {
	return &nodeKinds{
		function:   kindSet(spec.FunctionNodeTypes),
		class:      kindSet(spec.ClassNodeTypes),
		call:       kindSet(spec.CallNodeTypes),
		importName: kindSet(spec.ImportNodeTypes),
		importFrom: kindSet(spec.ImportFromTypes),
		decorator:  kindSet(spec.DecoratorNodeTypes),
	}
}

func kindSet(kinds []string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

func (k *nodeKinds) definition(kind string) bool {
	return k.function[kind] || k.class[kind]
}

func (k *nodeKinds) imports(kind string) bool {
	return k.importName[kind] || k.importFrom[kind]
}
