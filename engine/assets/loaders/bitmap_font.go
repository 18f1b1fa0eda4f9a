package loaders

import (
	"fmt"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

type KerningPair struct {
	First, Second rune
}

/** @brief Glyph layout read from a BMFont descriptor. */
type BitmapFont struct {
	Face       string
	Size       int32
	LineHeight int32
	Baseline   int32
	/** @brief Atlas size in pixels. */
	AtlasWidth  uint32
	AtlasHeight uint32
	Symbols     map[rune]metadata.FontSymbol
	Kernings    map[KerningPair]int32
}

// LoadBitmapFont reads a text BMFont (.fnt) file from disk. The atlas pages
// referenced by the descriptor must sit next to it.
func LoadBitmapFont(filename string) (*BitmapFont, error) {
	font, err := bmfont.Load(filename)
	if err != nil {
		return nil, fmt.Errorf("bitmap font %s: %w", filename, err)
	}
	desc := font.Descriptor

	out := &BitmapFont{
		Face:        desc.Info.Face,
		Size:        int32(desc.Info.Size),
		LineHeight:  int32(desc.Common.LineHeight),
		Baseline:    int32(desc.Common.Base),
		AtlasWidth:  uint32(desc.Common.ScaleW),
		AtlasHeight: uint32(desc.Common.ScaleH),
		Symbols:     make(map[rune]metadata.FontSymbol, len(desc.Chars)),
		Kernings:    make(map[KerningPair]int32, len(desc.Kerning)),
	}

	for _, g := range desc.Chars {
		// BMFont offsets are measured from the top of the line, symbols
		// keep their origin on the baseline
		out.Symbols[rune(g.ID)] = metadata.FontSymbol{
			X:       int32(g.X),
			Y:       int32(g.Y),
			Width:   int32(g.Width),
			Height:  int32(g.Height),
			OriginX: -int32(g.XOffset),
			OriginY: out.Baseline - int32(g.YOffset),
			Advance: int32(g.XAdvance),
		}
	}
	for p, k := range desc.Kerning {
		out.Kernings[KerningPair{First: rune(p.First), Second: rune(p.Second)}] = int32(k.Amount)
	}
	return out, nil
}
