package rbac

// Role names with built-in meaning.
const (
	AdministratorRole = "Administrator"
	DefaultUserRole   = "User"
)

// Permission names in the catalog.
const (
	PermViewProjects     = "view projects"
	PermCreateProjects   = "create projects"
	PermEditProjects     = "edit projects"
	PermDeleteProjects   = "delete projects"
	PermViewCategories   = "view categories"
	PermCreateCategories = "create categories"
	PermEditCategories   = "edit categories"
	PermDeleteCategories = "delete categories"
	PermViewTasks        = "view tasks"
	PermCreateTasks      = "create tasks"
	PermEditTasks        = "edit tasks"
	PermDeleteTasks      = "delete tasks"
	PermManageUsers      = "manage users"
	PermManageRoles      = "manage roles"
)

// Catalog is every permission the application knows about, in seeding order.
var Catalog = []string{
	PermViewProjects, PermCreateProjects, PermEditProjects, PermDeleteProjects,
	PermViewCategories, PermCreateCategories, PermEditCategories, PermDeleteCategories,
	PermViewTasks, PermCreateTasks, PermEditTasks, PermDeleteTasks,
	PermManageUsers, PermManageRoles,
}

// DefaultUserPermissions is the grant set seeded for the "User" role.
var DefaultUserPermissions = []string{
	PermViewProjects, PermCreateProjects, PermEditProjects, PermDeleteProjects,
	PermViewCategories,
	PermViewTasks, PermCreateTasks, PermEditTasks, PermDeleteTasks,
}

// IsKnownPermission reports whether name is in the catalog.
func IsKnownPermission(name string) bool {
	for _, p := range Catalog {
		if p == name {
			return true
		}
	}
	return false
}

// PermissionSet is the capability summary handed to the client. It always
// carries all eight keys.
type PermissionSet struct {
	Create     bool `json:"create"`
	Read       bool `json:"read"`
	Update     bool `json:"update"`
	Delete     bool `json:"delete"`
	CreateTask bool `json:"create_task"`
	ReadTask   bool `json:"read_task"`
	UpdateTask bool `json:"update_task"`
	DeleteTask bool `json:"delete_task"`
}

// frontendKeys maps each PermissionSet field onto the permission that grants it.
var frontendKeys = []struct {
	permission string
	field      func(*PermissionSet) *bool
}{
	{PermCreateProjects, func(s *PermissionSet) *bool { return &s.Create }},
	{PermViewProjects, func(s *PermissionSet) *bool { return &s.Read }},
	{PermEditProjects, func(s *PermissionSet) *bool { return &s.Update }},
	{PermDeleteProjects, func(s *PermissionSet) *bool { return &s.Delete }},
	{PermCreateTasks, func(s *PermissionSet) *bool { return &s.CreateTask }},
	{PermViewTasks, func(s *PermissionSet) *bool { return &s.ReadTask }},
	{PermEditTasks, func(s *PermissionSet) *bool { return &s.UpdateTask }},
	{PermDeleteTasks, func(s *PermissionSet) *bool { return &s.DeleteTask }},
}

// FrontendPermissions returns the eight permission names backing a PermissionSet.
func FrontendPermissions() []string {
	names := make([]string, 0, len(frontendKeys))
	for _, k := range frontendKeys {
		names = append(names, k.permission)
	}
	return names
}

// AllGranted returns a PermissionSet with every key set.
func AllGranted() PermissionSet {
	return PermissionSet{
		Create: true, Read: true, Update: true, Delete: true,
		CreateTask: true, ReadTask: true, UpdateTask: true, DeleteTask: true,
	}
}

// buildSet fills a PermissionSet by asking has for each backing permission.
func buildSet(has func(permission string) (bool, error)) (PermissionSet, error) {
	var set PermissionSet
	for _, k := range frontendKeys {
		ok, err := has(k.permission)
		if err != nil {
			return PermissionSet{}, err
		}
		*k.field(&set) = ok
	}
	return set, nil
}

// Any reports whether at least one key is granted.
func (s PermissionSet) Any() bool {
	return s.Create || s.Read || s.Update || s.Delete ||
		s.CreateTask || s.ReadTask || s.UpdateTask || s.DeleteTask
}
