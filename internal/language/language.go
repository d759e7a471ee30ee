package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string   // ISO 639-1
	code3   string   // ISO 639-2/T
	biblio  string   // ISO 639-2/B when it differs, e.g. "fre"
	display string   // English name
	words   []string // word forms accepted as input
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish", "espanol"}},
	{"fr", "fra", "fre", "French", []string{"french", "francais"}},
	{"de", "deu", "ger", "German", []string{"german", "deutsch"}},
	{"it", "ita", "", "Italian", []string{"italian", "italiano"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"da", "dan", "", "Danish", []string{"danish"}},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
	{"el", "ell", "gre", "Greek", []string{"greek"}},
	{"cs", "ces", "cze", "Czech", []string{"czech"}},
	{"tr", "tur", "", "Turkish", []string{"turkish"}},
	{"he", "heb", "", "Hebrew", []string{"hebrew"}},
	{"la", "lat", "", "Latin", []string{"latin"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.biblio != "" {
			byCode3[e.biblio] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

func clean(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// parseBase resolves BCP 47 input ("en-US", "pt_BR", "zh-Hant") to its base
// language. Underscores are accepted because locale strings often use them.
func parseBase(code string) (xlanguage.Base, bool) {
	tag, err := xlanguage.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return xlanguage.Base{}, false
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return xlanguage.Base{}, false
	}
	return base, true
}

// ToISO2 converts a recognized code, word, or tag to ISO 639-1. Unknown
// 2-letter codes pass through; anything else unrecognized yields "".
func ToISO2(code string) string {
	code = clean(code)
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if base, ok := parseBase(code); ok {
		if b := base.String(); len(b) == 2 {
			return b
		}
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// ToISO3 converts to ISO 639-2/T. Returns "und" when nothing matches.
func ToISO3(code string) string {
	code = clean(code)
	if code == "" {
		return "und"
	}
	if e := lookup(code); e != nil {
		return e.code3
	}
	if base, ok := parseBase(code); ok {
		if iso3 := base.ISO3(); iso3 != "" {
			return iso3
		}
	}
	if len(code) == 3 {
		return code
	}
	return "und"
}

// ToBibliographic returns the MARC language code used by Open Library, which
// differs from ISO 639-2/T for a handful of languages ("fre", "ger", "chi").
// Returns "" when the input cannot be mapped.
func ToBibliographic(code string) string {
	code = clean(code)
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		if e.biblio != "" {
			return e.biblio
		}
		return e.code3
	}
	if iso3 := ToISO3(code); iso3 != "und" {
		if e := lookup(iso3); e != nil && e.biblio != "" {
			return e.biblio
		}
		return iso3
	}
	return ""
}

// DisplayName returns an English name for the language.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if e := lookup(clean(code)); e != nil {
		return e.display
	}
	if base, ok := parseBase(clean(code)); ok {
		if name := display.English.Languages().Name(base); name != "" {
			return name
		}
	}
	return strings.ToUpper(trimmed)
}
