package domain

// NavigationItem is one entry of a layout's navigation tree. Permission,
// when set, names the admin permission required to show the item; filtering
// happens at render time, never when the tree is built.
type NavigationItem struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Path       string           `json:"path"`
	Icon       string           `json:"icon,omitempty"`
	Permission string           `json:"permission,omitempty"`
	Badge      string           `json:"badge,omitempty"`
	Children   []NavigationItem `json:"children,omitempty"`
}
