package assets

import (
	"github.com/spaghettifunk/chewman/engine/assets/loaders"
	"github.com/spaghettifunk/chewman/engine/renderer/metadata"
)

// TextureLoader reads image files for the material manager.
type TextureLoader struct {
	fs      FileSystem
	options loaders.ImageOptions
}

func NewTextureLoader(fs FileSystem, options loaders.ImageOptions) *TextureLoader {
	return &TextureLoader{fs: fs, options: options}
}

func (tl *TextureLoader) LoadImage(filename string) (*metadata.ImageData, error) {
	data, err := tl.fs.FileContent(filename)
	if err != nil {
		return nil, err
	}
	return loaders.DecodeImage(filename, data, tl.options)
}
