package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// PointerExt is the extension media players resolve as a stream pointer
const PointerExt = ".strm"

// PointerPath mirrors a remote media path into its local pointer path:
// the media extension is replaced with .strm, directories are kept.
func PointerPath(remotePath string) string {
	ext := path.Ext(remotePath)
	return strings.TrimSuffix(remotePath, ext) + PointerExt
}

// FlatPointerName collapses a remote media path into a single-directory
// pointer name. With disambiguate set the name carries a short digest of the
// remote parent dir, so two same-named files from different folders cannot
// clobber each other. The result depends only on the remote path itself.
func FlatPointerName(remotePath string, disambiguate bool) string {
	base := path.Base(remotePath)
	ext := path.Ext(base)
	base = strings.TrimSuffix(base, ext)

	if disambiguate {
		return base + "." + pathDigest(path.Dir(remotePath)) + PointerExt
	}

	return base + PointerExt
}

// pathDigest returns a short stable digest of a remote path
func pathDigest(p string) string {
	sum := sha256.Sum256([]byte(p))
	return hex.EncodeToString(sum[:4])
}

// hasExt reports whether name carries one of the extensions (case-insensitive)
func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// hasSuffix reports whether the base name (extension stripped) ends with one
// of the suffixes. An empty suffix list matches everything.
func hasSuffix(name string, suffixes []string) bool {
	if len(suffixes) == 0 {
		return true
	}

	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	for _, s := range suffixes {
		if strings.HasSuffix(base, s) {
			return true
		}
	}

	return false
}
