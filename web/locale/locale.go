// Package locale translates UI messages with go-i18n. Translation files are
// TOML, one per language, named translate.<lang-tag>.toml.
package locale

import (
	"io/fs"
	"strings"

	"github.com/postboard/postboard/logger"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

const (
	localizerKey = "localizer"
	langCookie   = "lang"
)

var DefaultLanguage = language.MustParse("en-US")

// Bundle holds the parsed translations; it is read-only once built.
type Bundle struct {
	bundle *i18n.Bundle
}

// NewBundle parses every file below dir in fsys.
func NewBundle(fsys fs.FS, dir string) (*Bundle, error) {
	b := i18n.NewBundle(DefaultLanguage)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		_, err = b.ParseMessageFileBytes(data, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Bundle{bundle: b}, nil
}

// Languages lists the tags that have translations.
func (b *Bundle) Languages() []language.Tag {
	return b.bundle.LanguageTags()
}

// Localizer picks a language from the "lang" cookie, then Accept-Language.
func (b *Bundle) Localizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(b.bundle, langs...)
}

// Middleware stores a per-request localizer in the gin context.
func (b *Bundle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		langs := make([]string, 0, 2)
		if cookie, err := c.Request.Cookie(langCookie); err == nil {
			langs = append(langs, cookie.Value)
		}
		langs = append(langs, c.GetHeader("Accept-Language"))
		c.Set(localizerKey, b.Localizer(langs...))
		c.Next()
	}
}

func createTemplateData(params []string, separator ...string) map[string]any {
	sep := "=="
	if len(separator) > 0 {
		sep = separator[0]
	}

	templateData := make(map[string]any)
	for _, param := range params {
		parts := strings.SplitN(param, sep, 2)
		if len(parts) == 2 {
			templateData[parts[0]] = parts[1]
		}
	}
	return templateData
}

// Translate localizes key with params of the form "Name==value". It falls
// back to the key itself so a missing message never blanks the page.
func Translate(localizer *i18n.Localizer, key string, params ...string) string {
	if localizer == nil {
		return key
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: createTemplateData(params),
	})
	if err != nil {
		// a message missing in the chosen language comes back in the default one, with an error
		logger.Debugf("localize %q: %v", key, err)
		if msg == "" {
			return key
		}
	}
	return msg
}

// I18n translates key with the localizer Middleware stored for this request.
func I18n(c *gin.Context, key string, params ...string) string {
	var localizer *i18n.Localizer
	if v, ok := c.Get(localizerKey); ok {
		localizer, _ = v.(*i18n.Localizer)
	}
	return Translate(localizer, key, params...)
}
