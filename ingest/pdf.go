// CLAUDE:SUMMARY PDF text extractor using pdfcpu: page-ordered, all-or-nothing, with quality metrics.
// CLAUDE:DEPENDS ingest/quality.go
// CLAUDE:EXPORTS ExtractPDFText
package ingest

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// NoPDFTextWarning is reported when a readable PDF yields no text at all.
const NoPDFTextWarning = "No extractable text found in PDF."

// ExtractPDFText extracts the text of every page in order, collapsing
// whitespace within a page and joining non-empty pages with a blank line.
// Extraction is all-or-nothing: if the document or any page's content cannot
// be read, the result is empty and carries a warning naming the failure.
func ExtractPDFText(data []byte) *TextResult {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return &TextResult{Warnings: []string{fmt.Sprintf("Could not read PDF: %v", err)}}
	}

	pages := make([]string, 0, ctx.PageCount)
	totalChars := 0
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		text, err := extractPageText(ctx, pageNr)
		if err != nil {
			return &TextResult{Warnings: []string{fmt.Sprintf("Could not extract text from PDF page %d: %v", pageNr, err)}}
		}
		if text == "" {
			continue
		}
		totalChars += len([]rune(text))
		pages = append(pages, text)
	}

	res := &TextResult{
		RawText:  strings.Join(pages, "\n\n"),
		Warnings: []string{},
	}
	if res.RawText == "" {
		res.Warnings = append(res.Warnings, NoPDFTextWarning)
	}

	var charsPerPage float64
	if ctx.PageCount > 0 {
		charsPerPage = float64(totalChars) / float64(ctx.PageCount)
	}
	res.Quality = &ExtractionQuality{
		PageCount:       ctx.PageCount,
		CharsPerPage:    charsPerPage,
		PrintableRatio:  computePrintableRatio(res.RawText),
		WordlikeRatio:   computeWordlikeRatio(res.RawText),
		HasImageStreams: detectImageStreams(ctx),
	}
	return res
}

// extractPageText returns the collapsed text of one page. A page without a
// content stream is empty, not an error.
func extractPageText(ctx *model.Context, pageNr int) (string, error) {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return collapseSpace(strings.Join(textItems(data), " ")), nil
}

// detectImageStreams reports whether any page or object of the document is
// an image XObject.
func detectImageStreams(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range ctx.Table {
		if entry != nil && !entry.Free && !entry.Compressed && isImageXObject(entry.Object) {
			return true
		}
	}
	return false
}

func isImageXObject(obj types.Object) bool {
	sd, ok := obj.(types.StreamDict)
	if !ok {
		return false
	}
	subtype := sd.NameEntry("Subtype")
	return subtype != nil && *subtype == "Image"
}

// operand is one value on the content stream operand stack. Only strings
// and arrays matter for text; everything else is kept as a placeholder so
// operator arity stays intact.
type operand struct {
	text    string
	isText  bool
	isArray bool
}

// textItems scans a page content stream and returns the payload of every
// text-showing operator (Tj, TJ, ' and "), one item per operator.
func textItems(stream []byte) []string {
	var (
		items []string
		stack []operand
	)
	sc := &contentScanner{data: stream}
	for {
		tok, ok := sc.next()
		if !ok {
			return items
		}
		if tok.kind != tokOperator {
			stack = append(stack, tok.operand)
			continue
		}
		switch tok.word {
		case "Tj", "'", "\"", "TJ":
			if n := len(stack); n > 0 && (stack[n-1].isText || stack[n-1].isArray) && stack[n-1].text != "" {
				items = append(items, stack[n-1].text)
			}
		case "BI":
			sc.skipInlineImage()
		}
		stack = stack[:0]
	}
}

type tokenKind int

const (
	tokOperand tokenKind = iota
	tokOperator
	tokArrayEnd
)

type token struct {
	kind    tokenKind
	word    string
	operand operand
}

// contentScanner tokenizes a PDF content stream.
type contentScanner struct {
	data []byte
	pos  int
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (sc *contentScanner) skipSpaceAndComments() {
	for sc.pos < len(sc.data) {
		c := sc.data[sc.pos]
		switch {
		case isPDFSpace(c):
			sc.pos++
		case c == '%':
			for sc.pos < len(sc.data) && sc.data[sc.pos] != '\n' && sc.data[sc.pos] != '\r' {
				sc.pos++
			}
		default:
			return
		}
	}
}

// regular consumes a run of non-space, non-delimiter bytes.
func (sc *contentScanner) regular() string {
	start := sc.pos
	for sc.pos < len(sc.data) && !isPDFSpace(sc.data[sc.pos]) && !isPDFDelimiter(sc.data[sc.pos]) {
		sc.pos++
	}
	return string(sc.data[start:sc.pos])
}

func (sc *contentScanner) next() (token, bool) {
	sc.skipSpaceAndComments()
	if sc.pos >= len(sc.data) {
		return token{}, false
	}
	c := sc.data[sc.pos]
	switch c {
	case '(':
		sc.pos++
		return token{operand: operand{text: sc.literalString(), isText: true}}, true
	case '<':
		if sc.pos+1 < len(sc.data) && sc.data[sc.pos+1] == '<' {
			sc.pos += 2
			return token{}, true
		}
		sc.pos++
		return token{operand: operand{text: sc.hexString(), isText: true}}, true
	case '>':
		sc.pos++
		if sc.pos < len(sc.data) && sc.data[sc.pos] == '>' {
			sc.pos++
		}
		return token{}, true
	case '[':
		sc.pos++
		return token{operand: sc.array()}, true
	case ']':
		sc.pos++
		return token{kind: tokArrayEnd}, true
	case '/':
		sc.pos++
		sc.regular()
		return token{}, true
	case ')', '{', '}':
		sc.pos++
		return token{}, true
	}

	word := sc.regular()
	if isNumberWord(word) {
		return token{operand: operand{text: word}}, true
	}
	return token{kind: tokOperator, word: word}, true
}

func isNumberWord(w string) bool {
	if w == "" {
		return false
	}
	switch c := w[0]; {
	case c >= '0' && c <= '9', c == '+', c == '-', c == '.':
		return true
	}
	return false
}

// kernSpace is the TJ displacement, in thousandths of an em, past which the
// gap between two strings is read as a word break.
const kernSpace = -200

// array reads a TJ-style array up to its closing bracket, joining the
// strings it holds.
func (sc *contentScanner) array() operand {
	var sb strings.Builder
	for {
		tok, ok := sc.next()
		if !ok || tok.kind == tokArrayEnd {
			return operand{text: sb.String(), isArray: true}
		}
		if tok.kind == tokOperator {
			continue
		}
		switch {
		case tok.operand.isText || tok.operand.isArray:
			sb.WriteString(tok.operand.text)
		case tok.operand.text != "":
			if n, err := strconv.ParseFloat(tok.operand.text, 64); err == nil && n <= kernSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		}
	}
}

// literalString reads a (...) string after its opening parenthesis,
// honouring nested parentheses and escapes.
func (sc *contentScanner) literalString() string {
	var out []byte
	depth := 1
	for sc.pos < len(sc.data) {
		c := sc.data[sc.pos]
		sc.pos++
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return latin1(out)
			}
		case '\\':
			out = sc.escape(out)
			continue
		}
		out = append(out, c)
	}
	return latin1(out)
}

func (sc *contentScanner) escape(out []byte) []byte {
	if sc.pos >= len(sc.data) {
		return out
	}
	c := sc.data[sc.pos]
	sc.pos++
	switch c {
	case 'n':
		return append(out, '\n')
	case 'r':
		return append(out, '\r')
	case 't':
		return append(out, '\t')
	case 'b':
		return append(out, '\b')
	case 'f':
		return append(out, '\f')
	case '\r':
		// Line continuation.
		if sc.pos < len(sc.data) && sc.data[sc.pos] == '\n' {
			sc.pos++
		}
		return out
	case '\n':
		return out
	}
	if c < '0' || c > '7' {
		return append(out, c)
	}
	val := int(c - '0')
	for n := 0; n < 2 && sc.pos < len(sc.data) && sc.data[sc.pos] >= '0' && sc.data[sc.pos] <= '7'; n++ {
		val = val*8 + int(sc.data[sc.pos]-'0')
		sc.pos++
	}
	return append(out, byte(val))
}

// hexString reads a <...> string after its opening bracket. Whitespace is
// ignored and an odd final digit is padded with 0.
func (sc *contentScanner) hexString() string {
	var digits []byte
	for sc.pos < len(sc.data) {
		c := sc.data[sc.pos]
		sc.pos++
		if c == '>' {
			break
		}
		if isHexDigit(c) {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, len(digits)/2)
	if _, err := hex.Decode(out, digits); err != nil {
		return ""
	}
	return latin1(out)
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// skipInlineImage jumps past the binary payload of a BI ... ID ... EI block.
func (sc *contentScanner) skipInlineImage() {
	id := bytes.Index(sc.data[sc.pos:], []byte("ID"))
	if id < 0 {
		sc.pos = len(sc.data)
		return
	}
	sc.pos += id + 2
	for sc.pos < len(sc.data) {
		ei := bytes.Index(sc.data[sc.pos:], []byte("EI"))
		if ei < 0 {
			sc.pos = len(sc.data)
			return
		}
		end := sc.pos + ei
		sc.pos = end + 2
		if end > 0 && isPDFSpace(sc.data[end-1]) && (sc.pos >= len(sc.data) || isPDFSpace(sc.data[sc.pos])) {
			return
		}
	}
}

// latin1 maps string bytes to runes one to one. Simple fonts use single-byte
// encodings close to Latin-1; two-byte CID codes in the ASCII range come out
// as NUL plus the letter, and collapseSpace drops the NUL.
func latin1(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

// collapseSpace turns every whitespace run into one space, drops
// non-printable runes and trims the ends.
func collapseSpace(text string) string {
	fields := strings.FieldsFunc(text, unicode.IsSpace)
	for i, f := range fields {
		fields[i] = strings.Map(func(r rune) rune {
			if unicode.IsPrint(r) {
				return r
			}
			return -1
		}, f)
	}
	return strings.Join(strings.Fields(strings.Join(fields, " ")), " ")
}
