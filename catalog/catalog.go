// Package catalog defines the room type and style vocabularies used by the
// visualization pipeline, including prompt fragments per entry and the
// mapping of free-text overrides onto safe default enum values for storage
// compatibility.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// RoomType identifies a supported room category.
type RoomType string

// Supported room types.
const (
	RoomKitchen    RoomType = "kitchen"
	RoomBathroom   RoomType = "bathroom"
	RoomLivingRoom RoomType = "living_room"
	RoomBedroom    RoomType = "bedroom"
	RoomDiningRoom RoomType = "dining_room"
	RoomHomeOffice RoomType = "home_office"
	RoomBasement   RoomType = "basement"
	RoomOther      RoomType = "other"
)

// Style identifies a supported renovation style.
type Style string

// Supported styles.
const (
	StyleModern       Style = "modern"
	StyleScandinavian Style = "scandinavian"
	StyleIndustrial   Style = "industrial"
	StyleFarmhouse    Style = "farmhouse"
	StyleMinimalist   Style = "minimalist"
	StyleTraditional  Style = "traditional"
	StyleJapandi      Style = "japandi"
	StyleCoastal      Style = "coastal"
)

// Defaults applied when a free-text override cannot be matched.
// Stored records always carry a valid enum value; the free-text override
// rides along separately and keeps its influence on prompt building.
const (
	DefaultRoomType = RoomOther
	DefaultStyle    = StyleModern
)

// roomPrompts maps room types to the prompt fragment describing them.
var roomPrompts = map[RoomType]string{
	RoomKitchen:    "a residential kitchen with cabinetry, countertops and appliances",
	RoomBathroom:   "a residential bathroom with sanitary fixtures and tiling",
	RoomLivingRoom: "a residential living room used for seating and gathering",
	RoomBedroom:    "a residential bedroom",
	RoomDiningRoom: "a residential dining room",
	RoomHomeOffice: "a residential home office or study",
	RoomBasement:   "a residential basement space",
	RoomOther:      "a residential interior space",
}

// stylePrompts maps styles to the prompt fragment describing them.
var stylePrompts = map[Style]string{
	StyleModern:       "modern style: clean lines, neutral palette, integrated lighting, matte surfaces",
	StyleScandinavian: "scandinavian style: light woods, white walls, soft textiles, abundant natural light",
	StyleIndustrial:   "industrial style: exposed brick and metal, dark accents, raw finishes",
	StyleFarmhouse:    "farmhouse style: shaker cabinetry, warm woods, apron sink, vintage fixtures",
	StyleMinimalist:   "minimalist style: uncluttered surfaces, hidden storage, monochrome palette",
	StyleTraditional:  "traditional style: classic mouldings, rich woods, symmetrical arrangements",
	StyleJapandi:      "japandi style: japanese-scandinavian fusion, low furniture, natural materials, muted tones",
	StyleCoastal:      "coastal style: white and blue palette, weathered wood, airy and bright",
}

// Catalog resolves room types and styles and supplies their prompt
// fragments. The built-in vocabularies can be extended or overridden from a
// YAML file at startup.
type Catalog struct {
	roomPrompts  map[RoomType]string
	stylePrompts map[Style]string
}

// New returns a Catalog with the built-in vocabularies.
func New() *Catalog {
	rooms := make(map[RoomType]string, len(roomPrompts))
	for k, v := range roomPrompts {
		rooms[k] = v
	}
	styles := make(map[Style]string, len(stylePrompts))
	for k, v := range stylePrompts {
		styles[k] = v
	}
	return &Catalog{roomPrompts: rooms, stylePrompts: styles}
}

// catalogFile is the YAML shape of a catalog override file.
type catalogFile struct {
	Rooms  map[string]string `yaml:"rooms"`
	Styles map[string]string `yaml:"styles"`
}

// NewFromFile returns a Catalog with the built-in vocabularies merged with
// entries from the given YAML file. File entries win on conflict.
func NewFromFile(path string) (*Catalog, error) {
	c := New()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog: parsing %s: %w", path, err)
	}

	for name, prompt := range file.Rooms {
		c.roomPrompts[RoomType(normalize(name))] = prompt
	}
	for name, prompt := range file.Styles {
		c.stylePrompts[Style(normalize(name))] = prompt
	}

	return c, nil
}

// normalize lowercases and underscore-joins a vocabulary name.
func normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// ResolveRoomType maps a requested room type string to a catalog entry.
// Unknown or free-text values map to DefaultRoomType; the caller keeps the
// raw text for prompt building.
func (c *Catalog) ResolveRoomType(requested string) RoomType {
	rt := RoomType(normalize(requested))
	if _, ok := c.roomPrompts[rt]; ok {
		return rt
	}
	return DefaultRoomType
}

// ResolveStyle maps a requested style string to a catalog entry.
// Unknown or free-text values map to DefaultStyle.
func (c *Catalog) ResolveStyle(requested string) Style {
	s := Style(normalize(requested))
	if _, ok := c.stylePrompts[s]; ok {
		return s
	}
	return DefaultStyle
}

// RoomTypeOverride returns the trimmed free-text room type when it does
// not match a catalog entry, empty otherwise. The override feeds prompt
// building; storage uses the resolved enum.
func (c *Catalog) RoomTypeOverride(requested string) string {
	trimmed := strings.TrimSpace(requested)
	if trimmed == "" {
		return ""
	}
	if _, ok := c.roomPrompts[RoomType(normalize(requested))]; ok {
		return ""
	}
	return trimmed
}

// StyleOverride returns the trimmed free-text style when it does not
// match a catalog entry, empty otherwise.
func (c *Catalog) StyleOverride(requested string) string {
	trimmed := strings.TrimSpace(requested)
	if trimmed == "" {
		return ""
	}
	if _, ok := c.stylePrompts[Style(normalize(requested))]; ok {
		return ""
	}
	return trimmed
}

// RoomPrompt returns the prompt fragment for a room type.
func (c *Catalog) RoomPrompt(rt RoomType) string {
	if p, ok := c.roomPrompts[rt]; ok {
		return p
	}
	return c.roomPrompts[DefaultRoomType]
}

// StylePrompt returns the prompt fragment for a style.
func (c *Catalog) StylePrompt(s Style) string {
	if p, ok := c.stylePrompts[s]; ok {
		return p
	}
	return c.stylePrompts[DefaultStyle]
}
