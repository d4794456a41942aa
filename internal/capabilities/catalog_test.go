package capabilities

import "testing"

func TestBuilderRegistrationOrder(t *testing.T) {
	b := NewBuilder()
	if err := b.RegisterGroup("alpha", "Alpha"); err != nil {
		t.Fatalf("register group: %v", err)
	}
	if err := b.RegisterGroup("beta", "Beta"); err != nil {
		t.Fatalf("register group: %v", err)
	}
	if err := b.RegisterCapability("beta", "b_one", "B One"); err != nil {
		t.Fatalf("register capability: %v", err)
	}
	if err := b.RegisterCapability("alpha", "a_one", "A One"); err != nil {
		t.Fatalf("register capability: %v", err)
	}
	if err := b.RegisterCapability("alpha", "a_two", "A Two"); err != nil {
		t.Fatalf("register capability: %v", err)
	}

	c := b.Build()

	groups := c.Groups()
	if len(groups) != 2 || groups[0] != "alpha" || groups[1] != "beta" {
		t.Fatalf("unexpected group order: %v", groups)
	}

	all := c.All()
	want := []string{"a_one", "a_two", "b_one"}
	if len(all) != len(want) {
		t.Fatalf("expected %d capabilities, got %d", len(want), len(all))
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("expected %q at position %d, got %q", want[i], i, all[i])
		}
	}
	if c.Len() != 3 {
		t.Fatalf("expected Len 3, got %d", c.Len())
	}
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	b := NewBuilder()
	if err := b.RegisterGroup("alpha", "Alpha"); err != nil {
		t.Fatalf("register group: %v", err)
	}
	if err := b.RegisterGroup("alpha", "Alpha again"); err == nil {
		t.Fatal("expected error for duplicate group")
	}
	if err := b.RegisterCapability("missing", "cap", "Cap"); err == nil {
		t.Fatal("expected error for unregistered group")
	}
	if err := b.RegisterCapability("alpha", "cap", "Cap"); err != nil {
		t.Fatalf("register capability: %v", err)
	}
	if err := b.RegisterCapability("alpha", "cap", "Cap again"); err == nil {
		t.Fatal("expected error for duplicate capability")
	}
}

func TestCatalogTitleFallback(t *testing.T) {
	b := NewBuilder()
	if err := b.RegisterGroup("alpha", ""); err != nil {
		t.Fatalf("register group: %v", err)
	}
	if err := b.RegisterCapability("alpha", "mystery_cap", ""); err != nil {
		t.Fatalf("register capability: %v", err)
	}
	c := b.Build()

	if got := c.GroupTitle("alpha"); got != "alpha" {
		t.Fatalf("expected group identifier fallback, got %q", got)
	}
	if got := c.Title("mystery_cap"); got != "mystery_cap" {
		t.Fatalf("expected capability identifier fallback, got %q", got)
	}
	if got := c.Title("never_registered"); got != "never_registered" {
		t.Fatalf("expected identifier for unknown capability, got %q", got)
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	groups := c.Groups()
	wantGroups := []Group{GroupPrimary, GroupForums, GroupTopics, GroupReplies, GroupTopicTags}
	if len(groups) != len(wantGroups) {
		t.Fatalf("expected %d groups, got %d", len(wantGroups), len(groups))
	}
	for i := range wantGroups {
		if groups[i] != wantGroups[i] {
			t.Fatalf("expected group %q at position %d, got %q", wantGroups[i], i, groups[i])
		}
	}

	if c.Len() != 28 {
		t.Fatalf("expected 28 capabilities, got %d", c.Len())
	}
	for _, cap := range []string{"spectate", "moderate", "publish_forums", "read_hidden_forums", "assign_topic_tags"} {
		if !c.Contains(cap) {
			t.Fatalf("expected default catalog to contain %q", cap)
		}
	}
	if c.Contains("manage_network") {
		t.Fatal("did not expect unrelated capability in catalog")
	}

	if got := c.Title("spectate"); got != "Spectate forum discussion" {
		t.Fatalf("unexpected title for spectate: %q", got)
	}

	// Default always returns the same sealed instance.
	if Default() != c {
		t.Fatal("expected Default to be memoized")
	}
}
