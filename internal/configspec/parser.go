package configspec

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Parse reads a config spec. Load rules are resolved against viewRoot.
//
// Recognized statements are "load", "element" and "mkbranch"/"end mkbranch"
// blocks. "time", "include", "ucm" and "create_branch" statements are
// accepted and ignored. Anything else is a *ParseError.
func Parse(viewRoot string, r io.Reader) (*Spec, error) {
	p := parser{viewRoot: viewRoot}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.line++
		if err := p.parseLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read config spec: %w", err)
	}
	if len(p.mkbranch) > 0 {
		return nil, &ParseError{Line: p.line, Reason: "unterminated mkbranch block", Text: "mkbranch " + p.mkbranch[len(p.mkbranch)-1]}
	}
	return New(p.loadRules, p.rules), nil
}

// ParseString is Parse over a string.
func ParseString(viewRoot, text string) (*Spec, error) {
	return Parse(viewRoot, strings.NewReader(text))
}

type parser struct {
	viewRoot  string
	line      int
	loadRules []LoadRule
	rules     []*Rule
	mkbranch  []string
}

func (p *parser) fail(text, format string, args ...any) error {
	return &ParseError{Line: p.line, Text: strings.TrimSpace(text), Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) parseLine(text string) error {
	words := tokenize(text)
	if len(words) == 0 {
		return nil
	}
	switch strings.ToLower(words[0]) {
	case "load":
		if len(words) < 2 {
			return p.fail(text, "load rule without a path")
		}
		for _, w := range words[1:] {
			p.loadRules = append(p.loadRules, NewLoadRule(p.viewRoot, w))
		}
	case "element":
		return p.parseElement(text, words[1:])
	case "mkbranch":
		if len(words) < 2 || strings.HasPrefix(words[1], "-") {
			return p.fail(text, "mkbranch without a branch name")
		}
		p.mkbranch = append(p.mkbranch, words[1])
	case "end":
		if len(words) < 2 {
			return p.fail(text, "end without a block keyword")
		}
		switch strings.ToLower(words[1]) {
		case "mkbranch":
			if len(p.mkbranch) == 0 {
				return p.fail(text, "end mkbranch without mkbranch")
			}
			p.mkbranch = p.mkbranch[:len(p.mkbranch)-1]
		case "time", "ucm":
		default:
			return p.fail(text, "unknown block %q", words[1])
		}
	case "time", "include", "ucm", "create_branch":
		slog.Debug("ignoring config spec statement", slog.Int("line", p.line), slog.String("statement", words[0]))
	default:
		return p.fail(text, "unknown statement %q", words[0])
	}
	return nil
}

func (p *parser) parseElement(text string, words []string) error {
	scope := ScopeAny
	for len(words) > 0 && strings.HasPrefix(words[0], "-") {
		switch strings.ToLower(words[0]) {
		case "-file":
			scope = ScopeFile
		case "-directory", "-dir":
			scope = ScopeDirectory
		case "-eltype":
			if len(words) < 2 {
				return p.fail(text, "-eltype without a type")
			}
			words = words[1:]
		default:
			return p.fail(text, "unknown scope %q", words[0])
		}
		words = words[1:]
	}
	if len(words) < 2 {
		return p.fail(text, "element rule needs a pattern and a version selector")
	}

	mkBranch := ""
	if len(p.mkbranch) > 0 {
		mkBranch = p.mkbranch[len(p.mkbranch)-1]
	}
	opts := words[2:]
	for i := 0; i < len(opts); i++ {
		if strings.EqualFold(opts[i], "-mkbranch") && i+1 < len(opts) {
			mkBranch = opts[i+1]
			break
		}
	}

	rule, err := NewRule(scope, words[0], words[1], mkBranch)
	if err != nil {
		return p.fail(text, "%v", err)
	}
	p.rules = append(p.rules, rule)
	return nil
}

// tokenize splits a line on blanks, keeping "{...}" queries and quoted
// strings whole and dropping a trailing "#" comment.
func tokenize(line string) []string {
	var (
		words []string
		cur   strings.Builder
		depth int
		quote bool
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote:
			if c == '"' {
				quote = false
			} else {
				cur.WriteByte(c)
			}
		case c == '"':
			quote = true
		case c == '{':
			depth++
			cur.WriteByte(c)
		case c == '}' && depth > 0:
			depth--
			cur.WriteByte(c)
		case depth > 0:
			cur.WriteByte(c)
		case c == '#' && cur.Len() == 0:
			flush()
			return words
		case c == ' ' || c == '\t' || c == '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return words
}
