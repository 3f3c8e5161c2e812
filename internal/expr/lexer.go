package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokInt
	tokString
	tokIdent
	tokTrue
	tokFalse
	tokNot
	tokAnd
	tokOr
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokEq
	tokNeq
	tokLt
	tokLeq
	tokGt
	tokGeq
	tokLParen
	tokRParen
	tokComma
	tokDot
	tokQuestion
	tokColon
	tokSemicolon
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// keywords maps word tokens. True/False are accepted alongside true/false
// for compatibility with existing rule sets.
var keywords = map[string]tokenKind{
	"not":   tokNot,
	"and":   tokAnd,
	"or":    tokOr,
	"true":  tokTrue,
	"True":  tokTrue,
	"false": tokFalse,
	"False": tokFalse,
}

// lex splits the expression text into tokens, ending with a tokEOF.
func lex(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0

	emit := func(kind tokenKind, text string, pos int) {
		tokens = append(tokens, token{kind: kind, text: text, pos: pos})
	}

	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case unicode.IsDigit(r):
			start := i
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			emit(tokInt, string(runes[start:i]), start)

		case r == '\'' || r == '"':
			text, next, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}
			emit(tokString, text, i)
			i = next

		case unicode.IsLetter(r) || r == '_':
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_') {
				i++
			}
			word := string(runes[start:i])
			if kind, ok := keywords[word]; ok {
				emit(kind, word, start)
			} else {
				emit(tokIdent, word, start)
			}

		default:
			kind, width, err := lexOperator(runes, i)
			if err != nil {
				return nil, err
			}
			emit(kind, string(runes[i:i+width]), i)
			i += width
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(runes)})
	return tokens, nil
}

// lexString reads a quoted string starting at runes[start] and returns its
// unescaped contents and the index past the closing quote. Backslash escapes
// the quote character and itself.
func lexString(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	var sb strings.Builder
	i := start + 1
	for i < len(runes) {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) {
			next := runes[i+1]
			if next == quote || next == '\\' {
				sb.WriteRune(next)
				i += 2
				continue
			}
		}
		if r == quote {
			return sb.String(), i + 1, nil
		}
		sb.WriteRune(r)
		i++
	}
	return "", 0, fmt.Errorf("%w: unterminated string at position %d", ErrSyntax, start)
}

func lexOperator(runes []rune, i int) (tokenKind, int, error) {
	two := ""
	if i+1 < len(runes) {
		two = string(runes[i : i+2])
	}
	switch two {
	case "==":
		return tokEq, 2, nil
	case "!=":
		return tokNeq, 2, nil
	case "<=":
		return tokLeq, 2, nil
	case ">=":
		return tokGeq, 2, nil
	case "&&":
		return tokAnd, 2, nil
	case "||":
		return tokOr, 2, nil
	}

	switch runes[i] {
	case '+':
		return tokPlus, 1, nil
	case '-':
		return tokMinus, 1, nil
	case '*':
		return tokStar, 1, nil
	case '/':
		return tokSlash, 1, nil
	case '%':
		return tokPercent, 1, nil
	case '<':
		return tokLt, 1, nil
	case '>':
		return tokGt, 1, nil
	case '!':
		return tokNot, 1, nil
	case '(':
		return tokLParen, 1, nil
	case ')':
		return tokRParen, 1, nil
	case ',':
		return tokComma, 1, nil
	case '.':
		return tokDot, 1, nil
	case '?':
		return tokQuestion, 1, nil
	case ':':
		return tokColon, 1, nil
	case ';':
		return tokSemicolon, 1, nil
	}
	return 0, 0, fmt.Errorf("%w: unexpected character %q at position %d", ErrSyntax, runes[i], i)
}

func parseInt(text string, pos int) (int64, error) {
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad integer %q at position %d", ErrSyntax, text, pos)
	}
	return v, nil
}
