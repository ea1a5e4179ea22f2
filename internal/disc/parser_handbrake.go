package disc

import (
	"regexp"
	"strconv"
	"strings"

	"platter/internal/services"
)

// The scan dialect is HandBrakeCLI's report: a confirmation line naming how
// many titles the scan found, then one block per title with `+ title N:`,
// `+ duration: HH:MM:SS`, and a `+ chapters:` section whose entries carry
// per-chapter durations. The patterns stay private so a different scan tool
// can be swapped in behind the same TitleRecord contract.
var (
	titleCountPattern = regexp.MustCompile(`scan thread found (\d+) valid title|scan: \w+ has (\d+) title`)
	titleStartPattern = regexp.MustCompile(`^\+ title (\d+):`)
	durationPattern   = regexp.MustCompile(`^\+ duration: (\d+):(\d{2}):(\d{2})`)
	chapterPattern    = regexp.MustCompile(`^\+ (\d+):(?:.*duration (\d+):(\d{2}):(\d{2}))?`)
	sectionPattern    = regexp.MustCompile(`^\+ ([a-z ]+):$`)
)

type tokenKind int

const (
	tokenTitleCount tokenKind = iota
	tokenTitleStart
	tokenDuration
	tokenSectionChapters
	tokenSectionOther
	tokenChapterSeen
	tokenChapterDuration
)

type token struct {
	kind    tokenKind
	value   int // title id, title count, or duration in seconds
	chapter int // 1-based chapter index for chapter tokens
}

// tokenize turns one scan line into at most one token. Lines that carry no
// structural meaning produce ok=false.
func tokenize(line string) (token, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return token{}, false
	}

	if m := titleCountPattern.FindStringSubmatch(trimmed); m != nil {
		count := m[1]
		if count == "" {
			count = m[2]
		}
		n, err := strconv.Atoi(count)
		if err != nil {
			return token{}, false
		}
		return token{kind: tokenTitleCount, value: n}, true
	}
	if m := titleStartPattern.FindStringSubmatch(trimmed); m != nil {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			return token{}, false
		}
		return token{kind: tokenTitleStart, value: id}, true
	}
	if m := durationPattern.FindStringSubmatch(trimmed); m != nil {
		return token{kind: tokenDuration, value: hmsSeconds(m[1], m[2], m[3])}, true
	}
	if m := sectionPattern.FindStringSubmatch(trimmed); m != nil {
		if m[1] == "chapters" {
			return token{kind: tokenSectionChapters}, true
		}
		return token{kind: tokenSectionOther}, true
	}
	if m := chapterPattern.FindStringSubmatch(trimmed); m != nil {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return token{}, false
		}
		if m[2] == "" {
			return token{kind: tokenChapterSeen, chapter: idx}, true
		}
		return token{kind: tokenChapterDuration, chapter: idx, value: hmsSeconds(m[2], m[3], m[4])}, true
	}
	return token{}, false
}

func hmsSeconds(h, m, s string) int {
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	seconds, _ := strconv.Atoi(s)
	return hours*3600 + minutes*60 + seconds
}

type parserState int

const (
	stateIdle parserState = iota
	stateInTitle
)

// scanParser consumes tokens and accumulates title records.
type scanParser struct {
	state      parserState
	inChapters bool

	current    TitleRecord
	records    []TitleRecord
	countSeen  bool
	titleCount int
}

func (p *scanParser) consume(tok token) {
	switch tok.kind {
	case tokenTitleCount:
		p.countSeen = true
		p.titleCount = tok.value
	case tokenTitleStart:
		p.finishTitle()
		p.state = stateInTitle
		p.current = TitleRecord{ID: tok.value}
	case tokenDuration:
		if p.state == stateInTitle && !p.inChapters {
			p.current.DurationSeconds = tok.value
		}
	case tokenSectionChapters:
		if p.state == stateInTitle {
			p.inChapters = true
		}
	case tokenSectionOther:
		p.inChapters = false
	case tokenChapterSeen:
		if p.state == stateInTitle && p.inChapters && tok.chapter > p.current.ChapterCount {
			p.current.ChapterCount = tok.chapter
		}
	case tokenChapterDuration:
		if p.state == stateInTitle && p.inChapters {
			if tok.chapter > p.current.ChapterCount {
				p.current.ChapterCount = tok.chapter
			}
			for len(p.current.ChapterDurations) < tok.chapter {
				p.current.ChapterDurations = append(p.current.ChapterDurations, 0)
			}
			p.current.ChapterDurations[tok.chapter-1] = tok.value
		}
	}
}

// finishTitle commits the in-flight title. Titles with no observed duration
// are discarded.
func (p *scanParser) finishTitle() {
	if p.state != stateInTitle {
		return
	}
	if p.current.DurationSeconds > 0 {
		p.records = append(p.records, p.current)
	}
	p.state = stateIdle
	p.inChapters = false
	p.current = TitleRecord{}
}

// ParseScan extracts ordered title records from a HandBrake scan report.
func ParseScan(output []byte) ([]TitleRecord, error) {
	text := strings.TrimSpace(string(output))
	if text == "" {
		return nil, services.Wrap(services.ErrParse, "scan", "parse", "empty scan output", nil)
	}

	parser := &scanParser{}
	sawTitle := false
	for _, line := range strings.Split(text, "\n") {
		tok, ok := tokenize(line)
		if !ok {
			continue
		}
		if tok.kind == tokenTitleStart {
			sawTitle = true
		}
		parser.consume(tok)
	}
	parser.finishTitle()

	if !parser.countSeen {
		return nil, services.Wrap(services.ErrParse, "scan", "parse", "scan output missing title count confirmation", nil)
	}
	if !sawTitle {
		return nil, services.Wrap(services.ErrParse, "scan", "parse", "no title markers in scan output", nil)
	}
	return parser.records, nil
}
