package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---\n"

// Split separates a YAML header from the body. Content without a header
// yields an empty map.
func Split(content string) (map[string]any, string, error) {
	meta := map[string]any{}
	body, err := Decode(content, &meta)
	if err != nil {
		return nil, "", err
	}
	return meta, body, nil
}

// Decode unmarshals the YAML header into meta and returns the body.
func Decode(content string, meta any) (string, error) {
	if !strings.HasPrefix(content, fence) {
		return content, nil
	}
	rest := content[len(fence):]
	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return "", fmt.Errorf("frontmatter is not closed")
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), meta); err != nil {
		return "", fmt.Errorf("unmarshal frontmatter: %w", err)
	}
	return rest[end+len("\n"+fence):], nil
}

// Render writes meta as a YAML header followed by body.
func Render(meta any, body string) (string, error) {
	raw, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(fence)
	buf.Write(raw)
	buf.WriteString(fence)
	if !strings.HasPrefix(body, "\n") {
		buf.WriteByte('\n')
	}
	buf.WriteString(body)
	return buf.String(), nil
}

// Document builds a small markdown body.
type Document struct {
	buf strings.Builder
}

func (d *Document) Heading(level int, text string) {
	d.gap()
	d.buf.WriteString(strings.Repeat("#", level))
	d.buf.WriteByte(' ')
	d.buf.WriteString(text)
	d.buf.WriteString("\n\n")
}

func (d *Document) Bullet(format string, args ...any) {
	d.buf.WriteString("- ")
	d.buf.WriteString(fmt.Sprintf(format, args...))
	d.buf.WriteByte('\n')
}

func (d *Document) Task(done bool, text string) {
	mark := " "
	if done {
		mark = "x"
	}
	d.Bullet("[%s] %s", mark, text)
}

func (d *Document) Paragraph(text string) {
	d.gap()
	d.buf.WriteString(strings.TrimSpace(text))
	d.buf.WriteString("\n\n")
}

func (d *Document) gap() {
	s := d.buf.String()
	if s != "" && !strings.HasSuffix(s, "\n\n") {
		d.buf.WriteByte('\n')
	}
}

func (d *Document) String() string {
	return strings.TrimRight(d.buf.String(), "\n") + "\n"
}
