package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveRoomType(t *testing.T) {
	c := New()

	tests := []struct {
		requested string
		want      RoomType
	}{
		{"kitchen", RoomKitchen},
		{"Kitchen", RoomKitchen},
		{"living room", RoomLivingRoom},
		{"LIVING_ROOM", RoomLivingRoom},
		{"wine cellar", DefaultRoomType},
		{"", DefaultRoomType},
	}

	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			if got := c.ResolveRoomType(tt.requested); got != tt.want {
				t.Errorf("ResolveRoomType(%q) = %s, want %s", tt.requested, got, tt.want)
			}
		})
	}
}

func TestResolveStyle(t *testing.T) {
	c := New()

	tests := []struct {
		requested string
		want      Style
	}{
		{"modern", StyleModern},
		{"Japandi", StyleJapandi},
		{"mid-century atomic ranch", DefaultStyle},
		{"", DefaultStyle},
	}

	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			if got := c.ResolveStyle(tt.requested); got != tt.want {
				t.Errorf("ResolveStyle(%q) = %s, want %s", tt.requested, got, tt.want)
			}
		})
	}
}

func TestRoomTypeOverride(t *testing.T) {
	c := New()

	tests := []struct {
		requested string
		want      string
	}{
		{"kitchen", ""},
		{"Kitchen", ""},
		{"wine cellar", "wine cellar"},
		{"  wine cellar  ", "wine cellar"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			if got := c.RoomTypeOverride(tt.requested); got != tt.want {
				t.Errorf("RoomTypeOverride(%q) = %q, want %q", tt.requested, got, tt.want)
			}
		})
	}
}

func TestStyleOverride(t *testing.T) {
	c := New()

	tests := []struct {
		requested string
		want      string
	}{
		{"modern", ""},
		{"MODERN", ""},
		{"art deco", "art deco"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			if got := c.StyleOverride(tt.requested); got != tt.want {
				t.Errorf("StyleOverride(%q) = %q, want %q", tt.requested, got, tt.want)
			}
		})
	}
}

func TestPromptsNeverEmpty(t *testing.T) {
	c := New()
	if c.RoomPrompt(RoomType("unknown")) == "" {
		t.Error("RoomPrompt for unknown type should fall back to default")
	}
	if c.StylePrompt(Style("unknown")) == "" {
		t.Error("StylePrompt for unknown style should fall back to default")
	}
}

func TestNewFromFileMergesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	content := `
rooms:
  wine cellar: "a residential wine cellar with racking and stone walls"
styles:
  modern: "overridden modern fragment"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("NewFromFile failed: %v", err)
	}

	if got := c.ResolveRoomType("wine cellar"); got != RoomType("wine_cellar") {
		t.Errorf("expected wine_cellar to resolve after merge, got %s", got)
	}
	if got := c.StylePrompt(StyleModern); got != "overridden modern fragment" {
		t.Errorf("expected style override to win, got %q", got)
	}
	// Built-ins survive the merge.
	if got := c.ResolveRoomType("kitchen"); got != RoomKitchen {
		t.Errorf("built-in kitchen lost after merge, got %s", got)
	}
}

func TestNewFromFileErrors(t *testing.T) {
	if _, err := NewFromFile("/no/such/file.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("rooms: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFile(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
