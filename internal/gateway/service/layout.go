package service

import (
	"strings"
	"sync"

	"github.com/entradalabs/entrada/internal/gateway/domain"
)

// LayoutVariant tags the two visual contexts the gateway serves.
type LayoutVariant string

const (
	LayoutAdmin  LayoutVariant = "admin"
	LayoutClient LayoutVariant = "client"
)

// Theme is the configured colour scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeAuto  Theme = "auto"
)

// MaxWidth bounds the content column of a layout.
type MaxWidth string

const (
	WidthSm   MaxWidth = "sm"
	WidthMd   MaxWidth = "md"
	WidthLg   MaxWidth = "lg"
	WidthXl   MaxWidth = "xl"
	Width2Xl  MaxWidth = "2xl"
	WidthFull MaxWidth = "full"
)

var containerWidthClasses = map[MaxWidth]string{
	WidthSm:   "max-w-sm",
	WidthMd:   "max-w-md",
	WidthLg:   "max-w-4xl",
	WidthXl:   "max-w-6xl",
	Width2Xl:  "max-w-7xl",
	WidthFull: "max-w-full",
}

// LayoutConfig holds the visual flags a variant renders with.
type LayoutConfig struct {
	Sidebar       bool     `json:"sidebar"`
	Header        bool     `json:"header"`
	Footer        bool     `json:"footer"`
	Breadcrumbs   bool     `json:"breadcrumbs"`
	Notifications bool     `json:"notifications"`
	Theme         Theme    `json:"theme"`
	MaxWidth      MaxWidth `json:"maxWidth"`
}

// Layout produces the navigation tree and structural descriptors for one
// visual context. It holds only in-memory presentation state; nothing here
// is persisted or network-visible. Safe for concurrent use.
type Layout struct {
	variant LayoutVariant

	mu     sync.RWMutex
	config LayoutConfig
	nav    []domain.NavigationItem
}

// NewAdminLayout builds the back-office layout: sidebar on, footer off,
// full-width content.
func NewAdminLayout() *Layout {
	return &Layout{
		variant: LayoutAdmin,
		config: LayoutConfig{
			Sidebar:       true,
			Header:        true,
			Footer:        false,
			Breadcrumbs:   true,
			Notifications: true,
			Theme:         ThemeLight,
			MaxWidth:      WidthFull,
		},
		nav: adminNavigation(),
	}
}

// NewClientLayout builds the storefront layout: no sidebar, footer on,
// bounded content column.
func NewClientLayout() *Layout {
	return &Layout{
		variant: LayoutClient,
		config: LayoutConfig{
			Sidebar:       false,
			Header:        true,
			Footer:        true,
			Breadcrumbs:   false,
			Notifications: true,
			Theme:         ThemeLight,
			MaxWidth:      Width2Xl,
		},
		nav: clientNavigation(),
	}
}

func (l *Layout) Variant() LayoutVariant { return l.variant }

// Config returns a copy of the current visual flags.
func (l *Layout) Config() LayoutConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Navigation returns the ordered navigation tree, including any items added
// at runtime and excluding any removed ones.
func (l *Layout) Navigation() []domain.NavigationItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.NavigationItem, len(l.nav))
	copy(out, l.nav)
	return out
}

// NavigationFor returns the navigation tree filtered to items whose
// permission tag is satisfied. Unprivileged viewers only see untagged
// items; filtering happens here at render time, the tree itself is shared.
func (l *Layout) NavigationFor(isAdmin bool) []domain.NavigationItem {
	items := l.Navigation()
	if isAdmin {
		return items
	}
	filtered := items[:0]
	for _, item := range items {
		if item.Permission == "" {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// LayoutClasses returns the structural descriptor for the page shell.
func (l *Layout) LayoutClasses() string {
	if l.variant == LayoutAdmin {
		return "min-h-screen bg-gray-50 flex"
	}
	return "min-h-screen flex flex-col bg-gray-50"
}

// ContainerClasses returns the structural descriptor for the content column.
func (l *Layout) ContainerClasses() string {
	if l.variant == LayoutAdmin {
		return "flex-1 flex flex-col overflow-hidden"
	}

	l.mu.RLock()
	width := l.config.MaxWidth
	l.mu.RUnlock()

	class, ok := containerWidthClasses[width]
	if !ok {
		class = containerWidthClasses[WidthFull]
	}
	return strings.Join([]string{"flex-1", class, "mx-auto px-4 sm:px-6 lg:px-8"}, " ")
}

func (l *Layout) SetTheme(theme Theme) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Theme = theme
}

func (l *Layout) ToggleSidebar() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.config.Sidebar = !l.config.Sidebar
}

// AddNavigationItem appends item to the tree.
func (l *Layout) AddNavigationItem(item domain.NavigationItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nav = append(l.nav, item)
}

// RemoveNavigationItem drops the top-level item with the given id. Unknown
// ids are a no-op.
func (l *Layout) RemoveNavigationItem(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.nav[:0]
	for _, item := range l.nav {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	l.nav = kept
}

func adminNavigation() []domain.NavigationItem {
	return []domain.NavigationItem{
		{ID: "dashboard", Name: "Dashboard", Path: "/admin", Icon: "LayoutDashboard", Permission: "view_dashboard"},
		{
			ID: "events", Name: "Events", Path: "/admin/events", Icon: "Calendar", Permission: "manage_events",
			Children: []domain.NavigationItem{
				{ID: "events-list", Name: "Event List", Path: "/admin/events", Icon: "List"},
				{ID: "events-create", Name: "Create Event", Path: "/admin/events/create", Icon: "Plus"},
				{ID: "events-categories", Name: "Categories", Path: "/admin/events/categories", Icon: "Tag"},
			},
		},
		{ID: "users", Name: "Users", Path: "/admin/users", Icon: "Users", Permission: "manage_users", Badge: "1.2K"},
		{ID: "analytics", Name: "Analytics", Path: "/admin/analytics", Icon: "BarChart3", Permission: "view_analytics"},
		{ID: "finances", Name: "Finances", Path: "/admin/finances", Icon: "DollarSign", Permission: "financial_reports"},
		{ID: "venues", Name: "Venues", Path: "/admin/venues", Icon: "MapPin", Permission: "manage_venues"},
		{ID: "scanner", Name: "QR Scanner", Path: "/admin/scanner", Icon: "QrCode", Permission: "scan_tickets"},
		{ID: "security", Name: "Security", Path: "/admin/security", Icon: "Shield", Permission: "security_logs"},
		{ID: "settings", Name: "Settings", Path: "/admin/settings", Icon: "Settings", Permission: "system_settings"},
	}
}

func clientNavigation() []domain.NavigationItem {
	return []domain.NavigationItem{
		{ID: "home", Name: "Home", Path: "/", Icon: "Home"},
		{ID: "events", Name: "Events", Path: "/events", Icon: "Calendar"},
		{ID: "categories", Name: "Categories", Path: "/categories", Icon: "Grid3X3"},
		{ID: "venues", Name: "Venues", Path: "/venues", Icon: "MapPin"},
	}
}
