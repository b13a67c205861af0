package storagekey

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultNamespace = "collaborators"
	defaultExtension = ".pdf"
	defaultBaseName  = "cv"
	timestampLayout  = "20060102T150405"
)

var (
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	repeatedSep  = regexp.MustCompile(`_+`)
)

// Builder строит детерминированные ключи хранилища для файлов резюме.
// Не имеет состояния и не обращается к файловой системе.
type Builder struct {
	namespace string
	baseDir   string
}

// NewBuilder создает Builder. Пустой namespace заменяется значением
// по умолчанию.
func NewBuilder(namespace, baseDir string) *Builder {
	if namespace == "" {
		namespace = defaultNamespace
	}
	return &Builder{namespace: namespace, baseDir: baseDir}
}

// BuildKey строит ключ хранилища и абсолютный путь для файла резюме.
// Ключ имеет вид {namespace}/{collaboratorID}/{timestamp}_{base}[_{suffix}]{ext}
// и детерминирован для одинаковых входных данных. Суффикс передается
// вызывающей стороной (обычно короткая форма id записи), чтобы два файла,
// загруженные в одну секунду, не получили одинаковый ключ.
func (b *Builder) BuildKey(collaboratorID, originalFileName string, uploadedAt time.Time, suffix string) (string, string) {
	base, ext := splitName(originalFileName)

	base = sanitize(base)
	if base == "" {
		base = defaultBaseName
	}

	ext = sanitize(strings.TrimPrefix(ext, "."))
	if ext == "" {
		ext = strings.TrimPrefix(defaultExtension, ".")
	}

	token := uploadedAt.UTC().Format(timestampLayout)

	name := token + "_" + base
	if suffix != "" {
		name += "_" + suffix
	}

	key := fmt.Sprintf("%s/%s/%s.%s", b.namespace, collaboratorID, name, ext)
	absPath := filepath.Join(b.baseDir, filepath.FromSlash(key))

	return key, absPath
}

// splitName отделяет расширение от имени файла
func splitName(fileName string) (string, string) {
	ext := filepath.Ext(fileName)
	return strings.TrimSuffix(fileName, ext), ext
}

// sanitize приводит фрагмент имени к безопасному виду: убирает
// диакритику, заменяет недопустимые символы на "_", схлопывает повторы
// и переводит в нижний регистр.
func sanitize(s string) string {
	s = stripDiacritics(s)
	s = invalidChars.ReplaceAllString(s, "_")
	s = repeatedSep.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return strings.ToLower(s)
}

// stripDiacritics убирает комбинируемые диакритические знаки (é -> e)
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
