package token

import (
	"fmt"
	"strconv"
	"unicode"
)

type Type int

const (
	Punct Type = iota
	Ident
	Number
)

func (t Type) String() string {
	switch t {
	case Punct:
		return "punctuation"
	case Ident:
		return "identifier"
	case Number:
		return "number"
	}
	return "unknown"
}

type Token struct {
	Value string
	Type  Type
	Line  int
}

const puncts = "{}()[];:,*=!@."

// Tokenize splits protocol source into tokens. Words are always taken whole,
// so a user type named uint8x or channel_type never splits into a keyword
// prefix. Runs starting with a digit that are not valid integers (16BPP)
// are identifiers.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	line := 1
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == '\n' {
			line++
			continue
		}
		if unicode.IsSpace(r) {
			continue
		}

		// Line comment
		if r == '/' && i+1 < len(runes) && runes[i+1] == '/' {
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			i--
			continue
		}

		// Block comment
		if r == '/' && i+1 < len(runes) && runes[i+1] == '*' {
			start := line
			i += 2
			closed := false
			for i < len(runes) {
				if runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/' {
					i++
					closed = true
					break
				}
				if runes[i] == '\n' {
					line++
				}
				i++
			}
			if !closed {
				return nil, fmt.Errorf("line %d: unterminated block comment", start)
			}
			continue
		}

		if isPunct(r) {
			tokens = append(tokens, Token{string(r), Punct, line})
			continue
		}

		if r == '-' && i+1 < len(runes) && unicode.IsDigit(runes[i+1]) {
			start := i
			i++
			for i < len(runes) && isWord(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			if _, err := strconv.ParseInt(word, 0, 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid number %q", line, word)
			}
			tokens = append(tokens, Token{word, Number, line})
			i--
			continue
		}

		if isWord(r) {
			start := i
			for i < len(runes) && isWord(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			typ := Ident
			if unicode.IsDigit(r) && isInteger(word) {
				typ = Number
			}
			tokens = append(tokens, Token{word, typ, line})
			i--
			continue
		}

		return nil, fmt.Errorf("line %d: unexpected character %q", line, r)
	}

	return tokens, nil
}

func isPunct(r rune) bool {
	for _, p := range puncts {
		if r == p {
			return true
		}
	}
	return false
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isInteger(s string) bool {
	if _, err := strconv.ParseInt(s, 0, 64); err == nil {
		return true
	}
	_, err := strconv.ParseUint(s, 0, 64)
	return err == nil
}
