package indexing

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoSupportedFiles  = errors.New("archive contains no supported files")
	ErrEmptyDocument     = errors.New("document has no text")
)

// maxMemberSize caps how much of one archive member is read.
const maxMemberSize = 64 << 20

// Source is the plain text of one document and where it came from.
type Source struct {
	Name string
	Text string
}

// Supported reports whether name has an extension Extract can read.
func Supported(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".txt", ".text", ".md", ".markdown", ".docx", ".html", ".htm", ".zip":
		return true
	}
	return false
}

// Extract returns the text of the document called name. Archives yield
// one Source per supported member; members that fail are reported in
// skipped and do not fail the archive.
func Extract(name string, data []byte) (sources []Source, skipped []string, err error) {
	ext := strings.ToLower(path.Ext(name))
	if ext == ".zip" {
		return extractZip(name, data)
	}
	content, err := extractSingle(ext, data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return []Source{{Name: name, Text: content}}, nil, nil
}

func extractSingle(ext string, data []byte) (string, error) {
	var (
		content string
		err     error
	)
	switch ext {
	case ".txt", ".text":
		if !utf8.Valid(data) {
			return "", errors.New("text file is not valid UTF-8")
		}
		content = string(data)
	case ".md", ".markdown":
		content = markdownText(data)
	case ".docx":
		content, err = docxText(data)
	case ".html", ".htm":
		content, err = htmlText(bytes.NewReader(data))
	case ".pdf":
		return "", fmt.Errorf("%w: PDF (convert it to text or docx first)", ErrUnsupportedFormat)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", err
	}
	content = normalize(content)
	if content == "" {
		return "", ErrEmptyDocument
	}
	return content, nil
}

func extractZip(name string, data []byte) ([]Source, []string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("%s is not a valid zip archive: %w", name, err)
	}

	var sources []Source
	var skipped []string
	for _, f := range zr.File {
		member := f.Name
		if f.FileInfo().IsDir() || strings.HasPrefix(member, "__MACOSX/") || strings.HasPrefix(path.Base(member), ".") {
			continue
		}
		ext := strings.ToLower(path.Ext(member))
		if ext == ".zip" || !Supported(member) {
			continue
		}

		body, err := readMember(f)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", member, err))
			continue
		}
		content, err := extractSingle(ext, body)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", member, err))
			continue
		}
		sources = append(sources, Source{Name: name + "/" + member, Text: content})
	}

	if len(sources) == 0 {
		return nil, skipped, fmt.Errorf("%s: %w", name, ErrNoSupportedFiles)
	}
	return sources, skipped, nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	body, err := io.ReadAll(io.LimitReader(rc, maxMemberSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxMemberSize {
		return nil, fmt.Errorf("larger than %d bytes", maxMemberSize)
	}
	return body, nil
}

// docxText reads the paragraphs of word/document.xml.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("not a valid docx file: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		body, err := readMember(f)
		if err != nil {
			return "", err
		}
		return wordXMLText(body)
	}
	return "", errors.New("docx file has no word/document.xml")
}

func wordXMLText(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

// htmlText returns the visible text of an HTML page.
func htmlText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "svg", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				sb.WriteString(s)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteString("\n\n")
		}
	}
	walk(doc)
	return sb.String(), nil
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "title": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"pre": true, "blockquote": true, "table": true, "ul": true, "ol": true,
}

// markdownText strips markdown syntax, keeping text and code.
func markdownText(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	var sb strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				sb.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					sb.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				sb.Write(node.Value)
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					sb.Write(seg.Value(src))
				}
			} else {
				sb.WriteString("\n")
			}
		default:
			if !entering && n.Type() == ast.TypeBlock {
				sb.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

var (
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
