package capabilities

import (
	"fmt"
	"sync"
)

// Group identifies an ordered, named partition of the catalog.
type Group string

// Built-in capability groups.
const (
	GroupPrimary   Group = "primary"
	GroupForums    Group = "forums"
	GroupTopics    Group = "topics"
	GroupReplies   Group = "replies"
	GroupTopicTags Group = "topic_tags"
)

// Catalog is the process-wide capability registry. It is sealed by the
// builder at startup and read-only afterwards.
type Catalog struct {
	groups      []Group
	groupTitles map[Group]string
	byGroup     map[Group][]string
	titles      map[string]string
	ordered     []string
	known       map[string]struct{}
}

// Builder accumulates group and capability registrations before sealing
// them into a Catalog. Plugins extend the catalog here instead of editing
// branch logic.
type Builder struct {
	mu          sync.Mutex
	groups      []Group
	groupTitles map[Group]string
	byGroup     map[Group][]string
	titles      map[string]string
	known       map[string]struct{}
}

// NewBuilder returns an empty catalog builder.
func NewBuilder() *Builder {
	return &Builder{
		groupTitles: make(map[Group]string),
		byGroup:     make(map[Group][]string),
		titles:      make(map[string]string),
		known:       make(map[string]struct{}),
	}
}

// RegisterGroup adds a display group. Registration order is display order.
func (b *Builder) RegisterGroup(group Group, title string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.groupTitles[group]; ok {
		return fmt.Errorf("capabilities: group %q already registered", group)
	}
	b.groups = append(b.groups, group)
	b.groupTitles[group] = title
	return nil
}

// RegisterCapability adds a capability to a registered group.
func (b *Builder) RegisterCapability(group Group, key, title string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.groupTitles[group]; !ok {
		return fmt.Errorf("capabilities: group %q not registered", group)
	}
	if _, ok := b.known[key]; ok {
		return fmt.Errorf("capabilities: capability %q already registered", key)
	}
	b.byGroup[group] = append(b.byGroup[group], key)
	b.titles[key] = title
	b.known[key] = struct{}{}
	return nil
}

// Build seals the registrations into an immutable Catalog.
func (b *Builder) Build() *Catalog {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &Catalog{
		groups:      append([]Group(nil), b.groups...),
		groupTitles: make(map[Group]string, len(b.groupTitles)),
		byGroup:     make(map[Group][]string, len(b.byGroup)),
		titles:      make(map[string]string, len(b.titles)),
		known:       make(map[string]struct{}, len(b.known)),
	}
	for g, t := range b.groupTitles {
		c.groupTitles[g] = t
	}
	for g, caps := range b.byGroup {
		c.byGroup[g] = append([]string(nil), caps...)
	}
	for k, t := range b.titles {
		c.titles[k] = t
	}
	for _, g := range c.groups {
		for _, cap := range c.byGroup[g] {
			c.ordered = append(c.ordered, cap)
			c.known[cap] = struct{}{}
		}
	}
	return c
}

// Groups returns the display groups in registration order.
func (c *Catalog) Groups() []Group {
	return append([]Group(nil), c.groups...)
}

// GroupTitle returns the human readable group title, falling back to the
// group identifier when untitled.
func (c *Catalog) GroupTitle(group Group) string {
	if title, ok := c.groupTitles[group]; ok && title != "" {
		return title
	}
	return string(group)
}

// Capabilities returns the capabilities of a group in registration order.
func (c *Catalog) Capabilities(group Group) []string {
	return append([]string(nil), c.byGroup[group]...)
}

// Title returns the human readable capability title, falling back to the
// capability identifier when untitled.
func (c *Catalog) Title(capability string) string {
	if title, ok := c.titles[capability]; ok && title != "" {
		return title
	}
	return capability
}

// Contains reports whether the capability is part of the catalog.
func (c *Catalog) Contains(capability string) bool {
	_, ok := c.known[capability]
	return ok
}

// All returns every catalog capability in group order.
func (c *Catalog) All() []string {
	return append([]string(nil), c.ordered...)
}

// Len returns the number of registered capabilities.
func (c *Catalog) Len() int {
	return len(c.ordered)
}

var defaultCatalog = sync.OnceValue(buildDefaultCatalog)

// Default returns the built-in forum capability catalog.
func Default() *Catalog {
	return defaultCatalog()
}

func buildDefaultCatalog() *Catalog {
	b := NewBuilder()

	must(b.RegisterGroup(GroupPrimary, "Primary capabilities"))
	must(b.RegisterGroup(GroupForums, "Forum capabilities"))
	must(b.RegisterGroup(GroupTopics, "Topic capabilities"))
	must(b.RegisterGroup(GroupReplies, "Reply capabilities"))
	must(b.RegisterGroup(GroupTopicTags, "Topic tag capabilities"))

	must(b.RegisterCapability(GroupPrimary, "spectate", "Spectate forum discussion"))
	must(b.RegisterCapability(GroupPrimary, "participate", "Participate in forums"))
	must(b.RegisterCapability(GroupPrimary, "moderate", "Moderate entire forum"))
	must(b.RegisterCapability(GroupPrimary, "throttle", "Skip forum throttle check"))
	must(b.RegisterCapability(GroupPrimary, "view_trash", "View items in forum trash"))

	must(b.RegisterCapability(GroupForums, "publish_forums", "Create forums"))
	must(b.RegisterCapability(GroupForums, "edit_forums", "Edit their own forums"))
	must(b.RegisterCapability(GroupForums, "edit_others_forums", "Edit all forums"))
	must(b.RegisterCapability(GroupForums, "delete_forums", "Delete their own forums"))
	must(b.RegisterCapability(GroupForums, "delete_others_forums", "Delete all forums"))
	must(b.RegisterCapability(GroupForums, "read_private_forums", "View private forums"))
	must(b.RegisterCapability(GroupForums, "read_hidden_forums", "View hidden forums"))

	must(b.RegisterCapability(GroupTopics, "publish_topics", "Create topics"))
	must(b.RegisterCapability(GroupTopics, "edit_topics", "Edit their own topics"))
	must(b.RegisterCapability(GroupTopics, "edit_others_topics", "Edit others topics"))
	must(b.RegisterCapability(GroupTopics, "delete_topics", "Delete own topics"))
	must(b.RegisterCapability(GroupTopics, "delete_others_topics", "Delete others topics"))
	must(b.RegisterCapability(GroupTopics, "read_private_topics", "View private topics"))

	must(b.RegisterCapability(GroupReplies, "publish_replies", "Create replies"))
	must(b.RegisterCapability(GroupReplies, "edit_replies", "Edit own replies"))
	must(b.RegisterCapability(GroupReplies, "edit_others_replies", "Edit others replies"))
	must(b.RegisterCapability(GroupReplies, "delete_replies", "Delete own replies"))
	must(b.RegisterCapability(GroupReplies, "delete_others_replies", "Delete others replies"))
	must(b.RegisterCapability(GroupReplies, "read_private_replies", "View private replies"))

	must(b.RegisterCapability(GroupTopicTags, "manage_topic_tags", "Remove tags from topics"))
	must(b.RegisterCapability(GroupTopicTags, "edit_topic_tags", "Edit topic tags"))
	must(b.RegisterCapability(GroupTopicTags, "delete_topic_tags", "Delete topic tags"))
	must(b.RegisterCapability(GroupTopicTags, "assign_topic_tags", "Assign tags to topics"))

	return b.Build()
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
