package parser

import (
	"fmt"
	"strings"
)

// TokenKind enumerates the lexical classes of the DomainForge DSL.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNewline
	TokenIdent
	TokenString
	TokenMultilineString
	TokenNumber
	TokenAtIdent // @name: directive or instance reference
	TokenPunct   // { } : , ( )
	TokenOperator
)

// Token is one lexeme with its half-open byte span in the source.
type Token struct {
	Kind  TokenKind
	Text  string // raw source text, quotes and sigils included
	Start int
	End   int
}

// LexError reports a lexical failure at a byte offset.
type LexError struct {
	Offset  int
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Offset, e.Message)
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentByte(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// Lex tokenizes source. Newlines are significant (they terminate policy
// expressions) and are emitted as TokenNewline; runs of blank lines
// collapse to one token. Line comments start with // and run to EOL.
func Lex(source string) ([]Token, error) {
	var tokens []Token
	i := 0
	n := len(source)

	emit := func(kind TokenKind, start, end int) {
		tokens = append(tokens, Token{Kind: kind, Text: source[start:end], Start: start, End: end})
	}

	for i < n {
		b := source[i]
		switch {
		case b == ' ' || b == '\t' || b == '\r':
			i++
		case b == '\n':
			start := i
			i++
			// collapse runs of blank lines into a single newline token
			for {
				j := i
				for j < n && (source[j] == ' ' || source[j] == '\t' || source[j] == '\r') {
					j++
				}
				if j < n && source[j] == '\n' {
					i = j + 1
				} else {
					break
				}
			}
			emit(TokenNewline, start, start+1)
		case b == '/' && i+1 < n && source[i+1] == '/':
			for i < n && source[i] != '\n' {
				i++
			}
		case strings.HasPrefix(source[i:], `"""`):
			start := i
			i += 3
			for {
				if i >= n {
					return nil, &LexError{Offset: start, Message: "unterminated multiline string"}
				}
				if strings.HasPrefix(source[i:], `"""`) {
					i += 3
					break
				}
				i++
			}
			emit(TokenMultilineString, start, i)
		case b == '"':
			start := i
			i++
			for {
				if i >= n {
					return nil, &LexError{Offset: start, Message: "unterminated string"}
				}
				if source[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				if source[i] == '"' {
					i++
					break
				}
				if source[i] == '\n' {
					return nil, &LexError{Offset: start, Message: "newline in string literal"}
				}
				i++
			}
			emit(TokenString, start, i)
		case b == '@':
			start := i
			i++
			if i >= n || !isIdentStart(source[i]) {
				return nil, &LexError{Offset: start, Message: "expected identifier after '@'"}
			}
			for i < n && isIdentByte(source[i]) {
				i++
			}
			emit(TokenAtIdent, start, i)
		case isIdentStart(b):
			start := i
			for i < n && isIdentByte(source[i]) {
				i++
			}
			emit(TokenIdent, start, i)
		case isDigit(b):
			start := i
			for i < n && isDigit(source[i]) {
				i++
			}
			if i < n && source[i] == '.' && i+1 < n && isDigit(source[i+1]) {
				i++
				for i < n && isDigit(source[i]) {
					i++
				}
			}
			emit(TokenNumber, start, i)
		case b == '{' || b == '}' || b == ':' || b == ',' || b == '(' || b == ')':
			emit(TokenPunct, i, i+1)
			i++
		case strings.IndexByte("=<>!+-*/&|.", b) >= 0:
			start := i
			for i < n && strings.IndexByte("=<>!+-*/&|.", source[i]) >= 0 {
				i++
			}
			emit(TokenOperator, start, i)
		default:
			return nil, &LexError{Offset: i, Message: fmt.Sprintf("unexpected byte %q", b)}
		}
	}

	tokens = append(tokens, Token{Kind: TokenEOF, Start: n, End: n})
	return tokens, nil
}
