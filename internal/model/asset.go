package model

import "image"

// Asset is an immutable decoded payload held by the asset cache.
//
// Thumbnails carry Image; downloaded pages carry the encoded bytes in Data and
// may have no Image until a consumer decodes them.
type Asset struct {
	Image  image.Image
	Data   []byte
	Width  int
	Height int
}
