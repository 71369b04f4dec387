// Package i18n picks the storefront language and formats text and prices for
// it. Translations live in locales/*.yaml and are compiled into an x/text
// message catalog at start-up.
package i18n

import (
	"embed"
	"fmt"
	"net/http"
	"path"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"golang.org/x/text/number"
	"gopkg.in/yaml.v3"
	"petshop/money"
)

const (
	English = "en"
	Chinese = "zh"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	tags    = []language.Tag{language.English, language.Chinese}
	codes   = []string{English, Chinese}
	matcher = language.NewMatcher(tags)
	cat     = mustLoadCatalog()
)

func mustLoadCatalog() *catalog.Builder {
	b, err := loadCatalog()
	if err != nil {
		panic(err)
	}
	return b
}

func loadCatalog() (*catalog.Builder, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for i, code := range codes {
		raw, err := localeFS.ReadFile(path.Join("locales", code+".yaml"))
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", code, err)
		}
		var msgs map[string]string
		if err := yaml.Unmarshal(raw, &msgs); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", code, err)
		}
		for key, msg := range msgs {
			if err := b.SetString(tags[i], key, msg); err != nil {
				return nil, fmt.Errorf("i18n: %s %s: %w", code, key, err)
			}
		}
	}
	return b, nil
}

// Supported reports whether lang is a storefront language code.
func Supported(lang string) bool {
	return lang == English || lang == Chinese
}

// Other is the language the switcher offers.
func Other(lang string) string {
	if lang == Chinese {
		return English
	}
	return Chinese
}

// Preferred picks a storefront language from Accept-Language, or fallback
// when nothing the browser asks for is close enough.
func Preferred(r *http.Request, fallback string) string {
	accept := r.Header.Get("Accept-Language")
	if accept != "" {
		prefs, _, err := language.ParseAcceptLanguage(accept)
		if err == nil && len(prefs) > 0 {
			_, idx, conf := matcher.Match(prefs...)
			if conf != language.No {
				return codes[idx]
			}
		}
	}
	if Supported(fallback) {
		return fallback
	}
	return English
}

// Localizer translates keys and formats prices for one language.
type Localizer struct {
	Lang string
	p    *message.Printer
}

func New(lang string) *Localizer {
	if !Supported(lang) {
		lang = English
	}
	tag := tags[0]
	if lang == Chinese {
		tag = tags[1]
	}
	return &Localizer{Lang: lang, p: message.NewPrinter(tag, message.Catalog(cat))}
}

// T returns the message for key, formatted with args. Unknown keys come back
// as the key itself.
func (l *Localizer) T(key string, args ...any) string {
	return l.p.Sprintf(key, args...)
}

// Money renders minor units as a yuan amount with the language's digit
// grouping, e.g. ¥1,299.00.
func (l *Localizer) Money(cents int64) string {
	return l.p.Sprintf("¥%v", number.Decimal(money.Float(cents), number.Scale(2)))
}

// Status is the display label of an order status.
func (l *Localizer) Status(status string) string {
	return l.T("status." + status)
}

// skipRedirect lists the path prefixes that are never localized.
var skipRedirect = []string{"/api/", "/static/", "/healthz"}

// LangFromPath returns the language segment of p, if it has one.
func LangFromPath(p string) (string, bool) {
	seg := strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	return seg, Supported(seg)
}

// Redirect sends unlocalized page requests to the same path under the
// visitor's preferred language. defaultLang is read per request so settings
// changes apply without a restart.
func Redirect(defaultLang func() string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		for _, prefix := range skipRedirect {
			if strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/") {
				next.ServeHTTP(w, r)
				return
			}
		}
		if _, ok := LangFromPath(p); ok {
			next.ServeHTTP(w, r)
			return
		}
		target := "/" + Preferred(r, defaultLang()) + p
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusFound)
	})
}
