package storage

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeName turns a user supplied model or file name into a storage-safe
// path segment. Accents are stripped and runs of anything but ASCII letters,
// digits and dots become one underscore.
func SanitizeName(name string) string {
	if strings.TrimSpace(name) == "" {
		name = "untitled_file"
	}
	plain, _, err := transform.String(stripMarks, name)
	if err != nil {
		plain = name
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range plain {
		if r == '.' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return b.String()
}

// SourcePrefix is the folder holding the training audio of one model.
func SourcePrefix(accountID, modelName string) string {
	return accountID + "/" + SanitizeName(modelName) + "/"
}

// SynthesisKey is where a generated audio file is stored.
func SynthesisKey(accountID, file string) string {
	return accountID + "/generated/" + file
}

// OwnedKey normalises a client supplied key or prefix and reports whether it
// lies inside the account's folder. Keys with a ".." segment are refused
// before cleaning so they cannot climb into another account. A trailing
// slash is kept so prefixes still match whole folders.
func OwnedKey(accountID, key string) (string, bool) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	if accountID == "" || key == "" || hasParentSegment(key) {
		return "", false
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if strings.HasSuffix(key, "/") {
		cleaned += "/"
	}
	root := accountID + "/"
	if !strings.HasPrefix(cleaned, root) || cleaned == root {
		return "", false
	}
	return cleaned, true
}

func hasParentSegment(key string) bool {
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
