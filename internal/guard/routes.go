package guard

import "strings"

// Route paths of the application.
const (
	PathLogin             = "/login"
	PathSelectVehicle     = "/select-vehicle"
	PathHome              = "/"
	PathVehicles          = "/vehicles"
	PathDriversManagement = "/drivers-management"
	PathDriverDashboard   = "/driver-dashboard"
	PathAIPlanner         = "/ai-planner"
	PathAnalytics         = "/analytics"
	PathProfile           = "/profile"
)

// Meta holds navigation requirements. A child route inherits every flag set
// on its parents.
type Meta struct {
	RequiresAuth   bool
	RequiresAdmin  bool
	RequiresDriver bool
}

func (m Meta) merge(child Meta) Meta {
	return Meta{
		RequiresAuth:   m.RequiresAuth || child.RequiresAuth,
		RequiresAdmin:  m.RequiresAdmin || child.RequiresAdmin,
		RequiresDriver: m.RequiresDriver || child.RequiresDriver,
	}
}

// Route is a node of the route table. Child paths are relative to the parent.
type Route struct {
	Path     string
	Name     string
	Meta     Meta
	Children []Route
}

// Match is a resolved route with its effective (inherited) meta.
type Match struct {
	Path string
	Name string
	Meta Meta
}

// DefaultRoutes mirrors the console application's navigation tree.
func DefaultRoutes() []Route {
	return []Route{
		{Path: PathLogin, Name: "Login"},
		{Path: PathSelectVehicle, Name: "Vehicle Selection", Meta: Meta{RequiresAuth: true, RequiresDriver: true}},
		{
			Path: PathHome,
			Meta: Meta{RequiresAuth: true},
			Children: []Route{
				{Path: "", Name: "Map"},
				{Path: "vehicles", Name: "Vehicles", Meta: Meta{RequiresAdmin: true}},
				{Path: "drivers-management", Name: "Drivers Management", Meta: Meta{RequiresAdmin: true}},
				{Path: "driver-dashboard", Name: "Driver Dashboard", Meta: Meta{RequiresDriver: true}},
				{Path: "ai-planner", Name: "AI Planner"},
				{Path: "analytics", Name: "Fuel Analytics"},
				{Path: "profile", Name: "Profile"},
			},
		},
	}
}

// Table is a flattened route table keyed by normalized path.
type Table struct {
	byPath map[string]Match
}

// NewTable flattens routes, joining child paths onto parents and merging meta.
func NewTable(routes []Route) *Table {
	t := &Table{byPath: make(map[string]Match)}
	for _, r := range routes {
		t.add("", Meta{}, r)
	}
	return t
}

func (t *Table) add(prefix string, inherited Meta, r Route) {
	full := join(prefix, r.Path)
	meta := inherited.merge(r.Meta)
	// a parent with a nameless empty child (e.g. "/" + "") is shadowed by that child
	if _, exists := t.byPath[full]; !exists || r.Name != "" {
		t.byPath[full] = Match{Path: full, Name: r.Name, Meta: meta}
	}
	for _, c := range r.Children {
		t.add(full, meta, c)
	}
}

// Lookup finds the route for target. Unknown paths have no requirements.
func (t *Table) Lookup(target string) (Match, bool) {
	p := Normalize(target)
	m, ok := t.byPath[p]
	if !ok {
		return Match{Path: p}, false
	}
	return m, true
}

// Normalize strips query and fragment, ensures a leading slash and drops a
// trailing one.
func Normalize(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	target = strings.TrimSpace(target)
	if !strings.HasPrefix(target, "/") {
		target = "/" + target
	}
	if len(target) > 1 {
		target = strings.TrimRight(target, "/")
		if target == "" {
			target = "/"
		}
	}
	return target
}

func join(prefix, p string) string {
	if strings.HasPrefix(p, "/") {
		return Normalize(p)
	}
	if p == "" {
		if prefix == "" {
			return "/"
		}
		return prefix
	}
	return Normalize(strings.TrimRight(prefix, "/") + "/" + p)
}
