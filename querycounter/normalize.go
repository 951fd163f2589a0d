package querycounter

import (
	"errors"
	"slices"
	"strings"

	sqllexer "github.com/DataDog/go-sqllexer"
)

const placeholder = "?"

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenQuotedIdent
	tokenPlaceholder
	tokenOperator
	tokenPunct
)

type token struct {
	kind tokenKind
	text string

	// literal holds the source text of a numeric literal that was replaced by a placeholder.
	literal string
}

// Dialect selects the lexing rules for quoting and escapes.
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectSQLite    Dialect = "sqlite"
	DialectMySQL     Dialect = "mysql"
	DialectSQLServer Dialect = "sqlserver"
)

// IsKnown tells if the dialect is one of the supported dialects.
func (d Dialect) IsKnown() bool {
	switch d {
	case DialectPostgres, DialectSQLite, DialectMySQL, DialectSQLServer:
		return true
	default:
		return false
	}
}

func (d Dialect) dbms() sqllexer.DBMSType {
	switch d {
	case DialectMySQL:
		return sqllexer.DBMSMySQL
	case DialectSQLServer:
		return sqllexer.DBMSSQLServer
	default:
		// SQLite follows the standard quoting rules, which the postgres lexer implements.
		return sqllexer.DBMSPostgres
	}
}

// multiCharOperators is ordered so that longer operators match first.
var multiCharOperators = []string{
	"->>", "#>>", "!~*",
	"<>", "<=", ">=", "!=", "||", "::", "->", "#>", "@>", "<@", "?|", "?&", "&&", "<<", ">>", "~*", "!~",
}

var keywords = map[string]struct{}{}

func init() {
	for _, kw := range strings.Fields(`
		ALL ALTER AND ANY AS ASC BEGIN BETWEEN BY CASE CAST COMMIT CONFLICT CREATE CROSS DEFAULT DELETE
		DESC DISTINCT DO DROP ELSE END EXCEPT EXISTS FALSE FETCH FIRST FOR FROM FULL GROUP HAVING ILIKE
		IN INDEX INNER INSERT INTERSECT INTERVAL INTO IS JOIN KEY LAST LATERAL LEFT LIKE LIMIT LOCKED NATURAL
		NEXT NOT NOTHING NOWAIT NULL NULLS OFFSET ON ONLY OR ORDER OUTER OVER PARTITION PRIMARY REFERENCES
		RELEASE RETURNING RIGHT ROLLBACK ROWS SAVEPOINT SELECT SET SHARE SKIP SOME TABLE THEN TRUE UNION
		UPDATE USING VALUES WHEN WHERE WINDOW WITH`) {
		keywords[kw] = struct{}{}
	}
}

// StatementBuilder is implemented by query builders that can render a statement
// together with its bind arguments, e.g. goqu datasets.
type StatementBuilder interface {
	ToSQL() (string, []any, error)
}

// Normalize converts raw statement text into a NormalizedKey, lexing it with postgres rules.
// See NormalizeDialect.
func Normalize(raw string) NormalizedKey {
	return NormalizeDialect(raw, DialectPostgres)
}

// NormalizeDialect converts raw statement text into a NormalizedKey.
//
// String and numeric literals as well as bind placeholders ($1, ?, :name, @p1) become "?",
// lists consisting only of placeholders collapse to a single "(?)", repeated VALUES rows collapse
// to the first row, comments and redundant whitespace are dropped and keywords are upper-cased.
// Identifiers, operators and clause structure are kept, so differently shaped statements stay apart.
// Integer ordinals in ORDER BY and GROUP BY lists are kept.
// The dialect decides how quotes and backslash escapes are lexed, e.g. 'O\'Brien' in MySQL.
func NormalizeDialect(raw string, dialect Dialect) NormalizedKey {
	tokens := tokenize(raw, dialect)
	tokens = keepOrdinals(tokens)
	tokens = trimTerminators(tokens)
	tokens = foldSignedLiterals(tokens)
	tokens = collapsePlaceholderLists(tokens)
	tokens = collapseValuesRows(tokens)

	return NormalizedKey(render(tokens))
}

// NormalizeStatement normalizes the pre-compiled form of a statement builder.
func NormalizeStatement(builder StatementBuilder) (NormalizedKey, error) {
	sqlText, _, err := builder.ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingStatementFailed, err)
	}

	return Normalize(sqlText), nil
}

func tokenize(sql string, dialect Dialect) []token {
	lexer := sqllexer.New(sql, sqllexer.WithDBMS(dialect.dbms()))
	b := tokenBuilder{tokens: make([]token, 0, len(sql)/4)}

	// every lexed token consumes at least one byte
	for range len(sql) + 1 {
		lexed := lexer.Scan()
		if lexed.Type == sqllexer.EOF {
			break
		}

		b.add(lexed.Type, lexed.Value)
	}

	return b.finish()
}

// tokenBuilder turns lexer output into normalizer tokens. Runs of adjacent symbols are buffered and
// split in one go, so the result does not depend on how the lexer chops operators and punctuation.
type tokenBuilder struct {
	tokens   []token
	symbols  string
	adjacent bool
	backtick *strings.Builder
}

func (b *tokenBuilder) add(kind sqllexer.TokenType, value string) {
	if b.backtick != nil {
		b.backtick.WriteString(value)
		if strings.HasSuffix(value, "`") {
			b.tokens = append(b.tokens, token{kind: tokenQuotedIdent, text: b.backtick.String()})
			b.backtick = nil
			b.adjacent = true
		}

		return
	}

	switch {
	case strings.TrimSpace(value) == "":
		b.separate()

	case kind == sqllexer.COMMENT || kind == sqllexer.MULTILINE_COMMENT:
		b.separate()

	case kind == sqllexer.QUOTED_IDENT:
		b.flushSymbols()
		b.tokens = append(b.tokens, token{kind: tokenQuotedIdent, text: value})
		b.adjacent = true

	case isLiteral(kind) && value != placeholder:
		b.addLiteral(kind, value)

	case len(value) > 1 && value[0] == '`' && strings.HasSuffix(value, "`"):
		b.flushSymbols()
		b.tokens = append(b.tokens, token{kind: tokenQuotedIdent, text: value})
		b.adjacent = true

	case value[0] == '`':
		b.flushSymbols()
		b.backtick = &strings.Builder{}
		b.backtick.WriteString(value)

	case isIdentStart(value[0]):
		b.addWord(value)

	default:
		if !b.adjacent {
			b.flushSymbols()
		}

		end := 0
		for end < len(value) && !isIdentStart(value[end]) && !isDigit(value[end]) {
			end++
		}
		b.symbols += value[:end]
		b.adjacent = true

		switch rest := value[end:]; {
		case rest == "":
		case isDigit(rest[0]):
			b.addLiteral(sqllexer.NUMBER, rest)
		default:
			b.addWord(rest)
		}
	}
}

func (b *tokenBuilder) addLiteral(kind sqllexer.TokenType, value string) {
	if b.adjacent {
		switch {
		case kind == sqllexer.NUMBER && strings.HasSuffix(b.symbols, "$"):
			// $1 lexed as "$" and a number
			b.symbols = strings.TrimSuffix(b.symbols, "$")
			value = ""
		case kind == sqllexer.STRING && b.symbols == "" && b.lastIsStringPrefix():
			// E'...', N'...', B'...', X'...'
			b.tokens = b.tokens[:len(b.tokens)-1]
		}
	}

	b.flushSymbols()

	literal := ""
	if kind == sqllexer.NUMBER {
		literal = value
	}

	b.tokens = append(b.tokens, token{kind: tokenPlaceholder, text: placeholder, literal: literal})
	b.adjacent = true
}

func (b *tokenBuilder) addWord(value string) {
	end := 0
	for end < len(value) && (isIdentChar(value[end]) || value[end] == '.') {
		end++
	}
	for end > 1 && value[end-1] == '.' {
		end--
	}
	word, rest := value[:end], value[end:]

	if b.adjacent && isNamedParameterPrefix(b.symbols) {
		// :name and @name lexed as a symbol and a word
		b.symbols = b.symbols[:len(b.symbols)-1]
		b.flushSymbols()
		b.tokens = append(b.tokens, token{kind: tokenPlaceholder, text: placeholder})
	} else {
		b.flushSymbols()
		b.tokens = append(b.tokens, wordToken(word))
	}

	b.symbols = rest
	b.adjacent = true
}

func (b *tokenBuilder) separate() {
	b.flushSymbols()
	b.adjacent = false
}

func (b *tokenBuilder) flushSymbols() {
	if b.symbols == "" {
		return
	}

	b.tokens = append(b.tokens, splitSymbols(b.symbols)...)
	b.symbols = ""
}

func (b *tokenBuilder) lastIsStringPrefix() bool {
	if len(b.tokens) == 0 {
		return false
	}

	last := b.tokens[len(b.tokens)-1]

	return last.kind == tokenWord && len(last.text) == 1 && strings.Contains("eEnNbBxX", last.text)
}

func (b *tokenBuilder) finish() []token {
	if b.backtick != nil {
		b.tokens = append(b.tokens, token{kind: tokenQuotedIdent, text: b.backtick.String()})
	}
	b.flushSymbols()

	return b.tokens
}

func isLiteral(kind sqllexer.TokenType) bool {
	switch kind {
	case sqllexer.STRING, sqllexer.INCOMPLETE_STRING, sqllexer.NUMBER,
		sqllexer.DOLLAR_QUOTED_STRING, sqllexer.DOLLAR_QUOTED_FUNCTION,
		sqllexer.POSITIONAL_PARAMETER, sqllexer.BIND_PARAMETER:
		return true
	default:
		return false
	}
}

// isNamedParameterPrefix tells if symbols end with a single ':' or '@' (not a '::' cast or '@@' variable).
func isNamedParameterPrefix(symbols string) bool {
	n := len(symbols)
	if n == 0 || (symbols[n-1] != ':' && symbols[n-1] != '@') {
		return false
	}

	return n == 1 || symbols[n-2] != symbols[n-1]
}

// splitSymbols splits a run of operator and punctuation characters; a lone '?' is a placeholder.
func splitSymbols(symbols string) []token {
	tokens := make([]token, 0, len(symbols))

	for i := 0; i < len(symbols); {
		c := symbols[i]
		next := peek(symbols, i+1)

		switch {
		case c == '?' && next != '|' && next != '&':
			tokens = append(tokens, token{kind: tokenPlaceholder, text: placeholder})
			i++

		case strings.IndexByte("(),;.[]", c) >= 0:
			tokens = append(tokens, token{kind: tokenPunct, text: string(c)})
			i++

		default:
			op := operatorAt(symbols, i)
			tokens = append(tokens, token{kind: tokenOperator, text: op})
			i += len(op)
		}
	}

	return tokens
}

func wordToken(word string) token {
	upper := strings.ToUpper(word)
	if isKeyword(upper) {
		return token{kind: tokenWord, text: upper}
	}

	return token{kind: tokenWord, text: word}
}

func isKeyword(upperWord string) bool {
	_, ok := keywords[upperWord]
	return ok
}

func operatorAt(sql string, i int) string {
	for _, op := range multiCharOperators {
		if strings.HasPrefix(sql[i:], op) {
			return op
		}
	}

	return sql[i : i+1]
}

// keepOrdinals turns integer placeholders in ORDER BY and GROUP BY lists back into their literal,
// so that "ORDER BY 1" and "ORDER BY 2" stay apart.
func keepOrdinals(tokens []token) []token {
	inList, depth := false, 0

	for i, t := range tokens {
		switch {
		case t.kind == tokenWord && t.text == "BY" && i > 0 &&
			(tokens[i-1].text == "ORDER" || tokens[i-1].text == "GROUP"):
			inList, depth = true, 0

		case !inList:

		case t.text == "(":
			depth++

		case t.text == ")":
			if depth == 0 {
				inList = false
			} else {
				depth--
			}

		case t.text == ";":
			inList = false

		case depth == 0 && t.kind == tokenWord && isKeyword(t.text) && !isOrderModifier(t.text):
			inList = false

		case depth == 0 && t.kind == tokenPlaceholder && isOrdinal(t.literal) &&
			(tokens[i-1].text == "BY" || tokens[i-1].text == ","):
			tokens[i] = token{kind: tokenWord, text: t.literal}
		}
	}

	return tokens
}

func isOrderModifier(upperWord string) bool {
	switch upperWord {
	case "ASC", "DESC", "NULLS", "FIRST", "LAST":
		return true
	default:
		return false
	}
}

func isOrdinal(literal string) bool {
	if literal == "" {
		return false
	}

	for i := range len(literal) {
		if !isDigit(literal[i]) {
			return false
		}
	}

	return true
}

// trimTerminators drops trailing statement terminators.
func trimTerminators(tokens []token) []token {
	for len(tokens) > 0 && tokens[len(tokens)-1].text == ";" {
		tokens = tokens[:len(tokens)-1]
	}

	return tokens
}

// foldSignedLiterals drops a unary minus or plus in front of a placeholder, so that "id = -1" and "id = 1" match.
func foldSignedLiterals(tokens []token) []token {
	result := make([]token, 0, len(tokens))

	for i, t := range tokens {
		isSign := t.kind == tokenOperator && (t.text == "-" || t.text == "+")
		if isSign && i+1 < len(tokens) && tokens[i+1].kind == tokenPlaceholder && isUnaryPosition(result) {
			continue
		}

		result = append(result, t)
	}

	return result
}

func isUnaryPosition(preceding []token) bool {
	if len(preceding) == 0 {
		return true
	}

	prev := preceding[len(preceding)-1]

	switch prev.kind {
	case tokenOperator:
		return true
	case tokenPunct:
		return prev.text == "(" || prev.text == ","
	case tokenWord:
		return isKeyword(prev.text)
	default:
		return false
	}
}

// collapsePlaceholderLists rewrites "(?, ?, ?)" to "(?)".
func collapsePlaceholderLists(tokens []token) []token {
	result := make([]token, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		if tokens[i].text == "(" {
			if end, ok := placeholderListEnd(tokens, i); ok {
				result = append(result,
					tokens[i],
					token{kind: tokenPlaceholder, text: placeholder},
					tokens[end],
				)
				i = end
				continue
			}
		}

		result = append(result, tokens[i])
	}

	return result
}

// placeholderListEnd returns the index of the closing parenthesis of a list that only contains placeholders.
func placeholderListEnd(tokens []token, open int) (int, bool) {
	expectPlaceholder := true

	for i := open + 1; i < len(tokens); i++ {
		t := tokens[i]

		switch {
		case expectPlaceholder && t.kind == tokenPlaceholder:
			expectPlaceholder = false
		case !expectPlaceholder && t.text == ",":
			expectPlaceholder = true
		case !expectPlaceholder && t.text == ")":
			return i, true
		default:
			return 0, false
		}
	}

	return 0, false
}

// collapseValuesRows keeps only the first of several identical rows after VALUES.
func collapseValuesRows(tokens []token) []token {
	result := make([]token, 0, len(tokens))

	for i := 0; i < len(tokens); i++ {
		result = append(result, tokens[i])

		if tokens[i].kind != tokenWord || tokens[i].text != "VALUES" {
			continue
		}

		rowEnd, ok := groupEnd(tokens, i+1)
		if !ok {
			continue
		}

		row := tokens[i+1 : rowEnd+1]
		result = append(result, row...)
		i = rowEnd

		for i+1 < len(tokens) && tokens[i+1].text == "," {
			nextEnd, ok := groupEnd(tokens, i+2)
			if !ok || !slices.EqualFunc(tokens[i+2:nextEnd+1], row, sameShape) {
				break
			}
			i = nextEnd
		}
	}

	return result
}

func sameShape(a, b token) bool {
	return a.kind == b.kind && a.text == b.text
}

// groupEnd returns the index of the parenthesis closing the group that opens at index open.
func groupEnd(tokens []token, open int) (int, bool) {
	if open >= len(tokens) || tokens[open].text != "(" {
		return 0, false
	}

	depth := 0
	for i := open; i < len(tokens); i++ {
		switch tokens[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}

	return 0, false
}

func render(tokens []token) string {
	var b strings.Builder

	for i, t := range tokens {
		if i > 0 && needsSpace(tokens[i-1], t) {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}

	return b.String()
}

func needsSpace(prev, next token) bool {
	switch {
	case next.text == "," || next.text == ")" || next.text == "." || next.text == "]" || next.text == "[":
		return false
	case prev.text == "(" || prev.text == "." || prev.text == "[":
		return false
	case prev.text == "::" || next.text == "::":
		return false
	case next.text == "(" && prev.kind == tokenQuotedIdent:
		return false
	case next.text == "(" && prev.kind == tokenWord && !isKeyword(prev.text):
		return false
	default:
		return true
	}
}

func peek(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}

	return 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}
