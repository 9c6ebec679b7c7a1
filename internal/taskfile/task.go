// Package taskfile reads and writes the plain text files a project is made of:
// the project file with its task list, and one markdown file per task with a
// YAML header.
package taskfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/danielolaszy/projectmd/pkg/models"
	"gopkg.in/yaml.v3"
)

// ErrParse is wrapped by every error caused by malformed file content.
var ErrParse = errors.New("parse error")

const delimiter = "---"

// Header keys understood by the task model. Everything else lands in Extra.
const (
	keyIssueID   = "issue_id"
	keyType      = "type"
	keyTags      = "tags"
	keyCreatedAt = "created_at"
	keyUpdatedAt = "updated_at"
)

// ReadTask loads the task file at path and returns its record together with
// the file's modification time in UTC.
func ReadTask(path string) (models.TaskRecord, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.TaskRecord{}, time.Time{}, fmt.Errorf("open task file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return models.TaskRecord{}, time.Time{}, fmt.Errorf("stat task file: %w", err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return models.TaskRecord{}, time.Time{}, fmt.Errorf("read task file %s: %w", path, err)
	}

	record, err := ParseTask(string(data))
	if err != nil {
		return models.TaskRecord{}, time.Time{}, fmt.Errorf("task file %s: %w", path, err)
	}

	return record, info.ModTime().UTC(), nil
}

// ParseTask parses the content of a task file.
//
// The file starts with a "---" line, followed by the YAML header and another
// "---" line. The first "# " heading after the header is the title and the
// text following it is the body.
func ParseTask(content string) (models.TaskRecord, error) {
	first, rest, _ := strings.Cut(content, "\n")
	if !isDelimiter(first) {
		return models.TaskRecord{}, fmt.Errorf("%w: missing opening %q line", ErrParse, delimiter)
	}

	header, text, err := cutHeader(rest)
	if err != nil {
		return models.TaskRecord{}, err
	}

	record := models.TaskRecord{Content: text}
	root, err := decodeHeader(header)
	if err != nil {
		return models.TaskRecord{}, err
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if isNull(value) && isKnownKey(key) {
			continue
		}

		switch key {
		case keyIssueID:
			var id int
			if err := value.Decode(&id); err != nil {
				return models.TaskRecord{}, fmt.Errorf("%w: %s must be an integer: %v", ErrParse, keyIssueID, err)
			}
			if id <= 0 {
				return models.TaskRecord{}, fmt.Errorf("%w: %s must be positive, got %d", ErrParse, keyIssueID, id)
			}
			record.IssueID = &id
		case keyType:
			var t string
			if err := value.Decode(&t); err != nil {
				return models.TaskRecord{}, fmt.Errorf("%w: %s must be a string: %v", ErrParse, keyType, err)
			}
			record.Type = &t
		case keyTags:
			tags := []string{}
			if err := value.Decode(&tags); err != nil {
				return models.TaskRecord{}, fmt.Errorf("%w: %s must be a list of strings: %v", ErrParse, keyTags, err)
			}
			record.Tags = tags
		case keyCreatedAt, keyUpdatedAt:
			if value.Kind != yaml.ScalarNode {
				return models.TaskRecord{}, fmt.Errorf("%w: %s must be a timestamp", ErrParse, key)
			}
			if key == keyCreatedAt {
				record.CreatedAt = value.Value
			} else {
				record.UpdatedAt = value.Value
			}
		default:
			detached, err := detach(value, map[*yaml.Node]bool{})
			if err != nil {
				return models.TaskRecord{}, fmt.Errorf("%w: %s: %v", ErrParse, key, err)
			}
			record.Extra = append(record.Extra, models.Field{Key: key, Value: detached})
		}
	}

	record.Title, record.Body = extractTitleAndBody(text)
	if record.Title == "" {
		return models.TaskRecord{}, fmt.Errorf("%w: no \"# \" title heading", ErrParse)
	}

	return record, nil
}

// MarshalTask renders a record back into task file content. Known keys come
// first in a fixed order, followed by the extra keys in their original order.
// Content is appended unchanged.
func MarshalTask(record models.TaskRecord) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}

	if record.IssueID != nil {
		if err := appendPair(root, keyIssueID, *record.IssueID); err != nil {
			return nil, err
		}
	}
	if record.Type != nil {
		if err := appendPair(root, keyType, *record.Type); err != nil {
			return nil, err
		}
	}
	if record.Tags != nil {
		if err := appendPair(root, keyTags, record.Tags); err != nil {
			return nil, err
		}
		root.Content[len(root.Content)-1].Style = yaml.FlowStyle
	}
	if record.CreatedAt != "" {
		root.Content = append(root.Content, keyNode(keyCreatedAt), timestampNode(record.CreatedAt))
	}
	if record.UpdatedAt != "" {
		root.Content = append(root.Content, keyNode(keyUpdatedAt), timestampNode(record.UpdatedAt))
	}
	for _, field := range record.Extra {
		root.Content = append(root.Content, keyNode(field.Key), field.Value)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	if len(root.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(root); err != nil {
			return nil, fmt.Errorf("encode task header: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode task header: %w", err)
		}
	}
	buf.WriteString(delimiter + "\n")
	buf.WriteString(record.Content)

	return buf.Bytes(), nil
}

// cutHeader splits text at the first "---" line. It returns the lines before
// it and everything after it, verbatim.
func cutHeader(text string) (string, string, error) {
	var header strings.Builder
	rest := text
	for rest != "" {
		line, next, _ := strings.Cut(rest, "\n")
		if isDelimiter(line) {
			return header.String(), next, nil
		}
		header.WriteString(line)
		header.WriteByte('\n')
		rest = next
	}
	return "", "", fmt.Errorf("%w: header is not closed by a %q line", ErrParse, delimiter)
}

// decodeHeader parses YAML header text into its top-level mapping node.
func decodeHeader(header string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(header), &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid YAML header: %v", ErrParse, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode}, nil
	}

	root := doc.Content[0]
	if isNull(root) {
		return &yaml.Node{Kind: yaml.MappingNode}, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: YAML header must be a mapping", ErrParse)
	}
	return root, nil
}

// detach returns a deep copy of node with every alias replaced by a copy of
// the node it refers to and every anchor removed. Known keys are re-encoded on
// write and lose their anchors, so extra fields must not depend on them.
func detach(node *yaml.Node, visiting map[*yaml.Node]bool) (*yaml.Node, error) {
	if node.Kind == yaml.AliasNode {
		if node.Alias == nil {
			return nil, fmt.Errorf("unknown anchor %q referenced", node.Value)
		}
		return detach(node.Alias, visiting)
	}
	if visiting[node] {
		return nil, fmt.Errorf("anchor %q refers to itself", node.Anchor)
	}
	visiting[node] = true
	defer delete(visiting, node)

	copied := *node
	copied.Anchor = ""
	if node.Content != nil {
		copied.Content = make([]*yaml.Node, len(node.Content))
		for i, child := range node.Content {
			c, err := detach(child, visiting)
			if err != nil {
				return nil, err
			}
			copied.Content[i] = c
		}
	}
	return &copied, nil
}

func extractTitleAndBody(text string) (string, string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			title := strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
			body := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			return title, body
		}
	}
	return "", ""
}

func isDelimiter(line string) bool {
	return strings.TrimRight(line, " \t\r") == delimiter
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

func isKnownKey(key string) bool {
	switch key {
	case keyIssueID, keyType, keyTags, keyCreatedAt, keyUpdatedAt:
		return true
	}
	return false
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}

func appendPair(root *yaml.Node, key string, value any) error {
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	root.Content = append(root.Content, keyNode(key), &node)
	return nil
}

// timestampNode writes valid timestamps as plain scalars and anything else as
// a properly quoted string.
func timestampNode(value string) *yaml.Node {
	if _, err := ParseTimestamp(value); err == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	}
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: value}
	}
	return &node
}
