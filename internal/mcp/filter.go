package mcp

// Filter restricts which tools a provider exposes. The zero value excludes
// nothing, i.e. allows every tool.
type Filter struct {
	include map[string]struct{}
	exclude map[string]struct{}
}

// Include builds a filter passing only the named tools.
func Include(names ...string) Filter {
	return Filter{include: toSet(names)}
}

// Exclude builds a filter passing every tool except the named ones.
func Exclude(names ...string) Filter {
	return Filter{exclude: toSet(names)}
}

// Allows reports whether a tool name passes the filter.
func (f Filter) Allows(name string) bool {
	if f.include != nil {
		_, ok := f.include[name]
		return ok
	}
	_, ok := f.exclude[name]
	return !ok
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}
