package content

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/izotovlife/izotovlife.ru-sub000/app/feed"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".avif": true,
	".bmp":  true,
	".svg":  true,
}

// PickImage chooses the item image from feed hints: enclosures and media
// content first (only when they look like images), then thumbnails and the
// item image. Relative URLs are resolved against base.
func PickImage(hints []feed.ImageHint, base string) string {
	for _, hint := range hints {
		if hint.Origin != feed.OriginEnclosure && hint.Origin != feed.OriginMediaContent {
			continue
		}
		if !isImageHint(hint) {
			continue
		}
		if resolved := ResolveURL(base, hint.URL); resolved != "" {
			return resolved
		}
	}

	for _, hint := range hints {
		if hint.Origin != feed.OriginMediaThumbnail && hint.Origin != feed.OriginItemImage {
			continue
		}
		if resolved := ResolveURL(base, hint.URL); resolved != "" {
			return resolved
		}
	}

	return ""
}

// FirstImage returns the first <img> source found in an HTML fragment.
func FirstImage(fragment, base string) string {
	if !LooksLikeHTML(fragment) {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return imageFrom(doc.Find("img"), base)
}

func imageFrom(images *goquery.Selection, base string) string {
	result := ""
	images.EachWithBreak(func(_ int, img *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src", "data-original"} {
			src, ok := img.Attr(attr)
			if !ok || strings.HasPrefix(strings.TrimSpace(src), "data:") {
				continue
			}
			if resolved := ResolveURL(base, src); resolved != "" {
				result = resolved
				return false
			}
		}
		return true
	})
	return result
}

func isImageHint(hint feed.ImageHint) bool {
	kind := strings.ToLower(strings.TrimSpace(hint.Type))
	if strings.HasPrefix(kind, "image/") || kind == "image" {
		return true
	}
	if kind != "" && !strings.HasPrefix(kind, "application/octet-stream") {
		return false
	}
	return HasImageExtension(hint.URL)
}

func HasImageExtension(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return imageExtensions[strings.ToLower(path.Ext(u.Path))]
}

// ResolveURL makes ref absolute against base; only http(s) results are returned.
func ResolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	refURL, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if !refURL.IsAbs() {
		baseURL, err := url.Parse(base)
		if err != nil || !baseURL.IsAbs() {
			if strings.HasPrefix(ref, "//") {
				refURL.Scheme = "https"
			} else {
				return ""
			}
		} else {
			refURL = baseURL.ResolveReference(refURL)
		}
	}

	if refURL.Scheme != "http" && refURL.Scheme != "https" {
		return ""
	}
	return refURL.String()
}
